package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/bootenv"
	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

func newPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove obsolete deployments",
		Long: `Remove deployments that are neither booted nor staged and garbage-collect
unreferenced objects. This is the same cleanup an update performs as its
final step; running it standalone reclaims space without staging anything.`,
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
			if err := planner.Prune(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("Pruned obsolete deployments")
			return nil
		},
	}
}
