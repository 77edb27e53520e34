package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Pull and stage an OS update",
		Long: `Pull the configured ref from the remote repository and stage it as a
deployment for the next boot.

The update runs as a single transaction: the remote is ensured, the ref is
pulled and resolved to a commit, and a new deployment is staged. The running
system is never touched; the staged deployment takes effect on the next boot.
A failure before staging leaves the boot state exactly as it was. A cleanup
failure after a successful stage is reported as a warning, not an error.`,
		Example: `  # Run an update with the default config
  updatemgr update

  # Run with an explicit config file
  updatemgr update --config /etc/updatemgr/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			metrics, err := newMetrics(cfg)
			if err != nil {
				return err
			}
			tracer, err := newTracer(cfg, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer tracer.Shutdown(ctx)

			journal, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			if journal != nil {
				defer journal.Close()
			}

			res, err := runUpdate(ctx, cfg, logger, metrics, tracer, journal, nil, !jsonOutput)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printResultJSON(res)
			}
			return printResult(res)
		},
	}

	return cmd
}

// printResult reports the transaction outcome and sets the exit code.
func printResult(res engine.Result) error {
	switch res.Status {
	case engine.StatusSucceeded:
		fmt.Printf("Staged commit %s for %s; takes effect on next boot\n",
			res.Commit.Short(), res.Deployment.OSName)
		return nil
	case engine.StatusSucceededWithWarning:
		fmt.Printf("Staged commit %s for %s; takes effect on next boot\n",
			res.Commit.Short(), res.Deployment.OSName)
		fmt.Fprintf(os.Stderr, "warning: cleanup of old deployments failed: %v\n", res.Warning)
		return nil
	default:
		return fmt.Errorf("update failed at stage %s: %w", res.FailedStage, res.Err)
	}
}

// printResultJSON writes the outcome as a JSON document on stdout.
func printResultJSON(res engine.Result) error {
	out := map[string]interface{}{
		"id":           res.ID,
		"status":       string(res.Status),
		"commit":       string(res.Commit),
		"started_at":   res.StartedAt,
		"completed_at": res.CompletedAt,
		"duration":     res.Duration.String(),
	}
	if res.FailedStage != "" {
		out["failed_stage"] = string(res.FailedStage)
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if res.Warning != nil {
		out["warning"] = res.Warning.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if res.Status == engine.StatusFailed {
		return fmt.Errorf("update failed at stage %s: %w", res.FailedStage, res.Err)
	}
	return nil
}
