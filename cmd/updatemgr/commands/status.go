package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/bootenv"
	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current deployments",
		Long: `Show the deployments known to the boot environment, including the
currently booted one and any staged deployment waiting for the next boot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			boot, err := bootenv.Open(cfg.SysrootPath, bootenv.WithLogger(logger.Zerolog()))
			if err != nil {
				return err
			}
			defer boot.Close()

			planner := engine.NewDeploymentPlanner(boot, logger.Zerolog())
			deployments, err := planner.CurrentDeployments(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(deployments)
			}

			if len(deployments) == 0 {
				fmt.Println("No deployments")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, " \tOS\tCOMMIT\tORIGIN\tSTATE")
			for _, d := range deployments {
				marker := " "
				if d.Booted {
					marker = "*"
				}
				state := ""
				if d.Staged {
					state = "staged"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					marker, d.OSName, d.Commit.Short(), d.Origin, state)
			}
			return w.Flush()
		},
	}
}
