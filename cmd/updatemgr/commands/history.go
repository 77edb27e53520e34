package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past update runs",
		Long:  `List recent update runs from the journal, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Journal.Path == "" {
				return fmt.Errorf("journaling is disabled (no journal path configured)")
			}

			journal, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Println("No update runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOS\tREF\tCOMMIT\tSTATUS\tDETAIL")
			for _, run := range runs {
				detail := ""
				switch {
				case run.Status == stores.RunStatusFailed && run.Error != nil:
					detail = fmt.Sprintf("%s: %s", run.FailedStage, *run.Error)
				case run.Status == stores.RunStatusSucceededWithWarning && run.Warning != nil:
					detail = *run.Warning
				}
				commit := run.Commit
				if len(commit) > 12 {
					commit = commit[:12]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.StartedAt.Local().Format(time.RFC3339),
					run.OSName, run.Ref, commit, run.Status, detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")

	return cmd
}
