package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
	"github.com/Tech-Reformist/update-manager/pkg/treestore"
)

func newRemotesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remotes",
		Short: "Manage remote repositories",
	}

	cmd.AddCommand(newRemotesListCommand())
	cmd.AddCommand(newRemotesAddCommand())

	return cmd
}

func newRemotesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := treestore.Open(cfg.RepoPath, treestore.WithLogger(logger.Zerolog()))
			if err != nil {
				return err
			}
			defer store.Close()

			registry := engine.NewRemoteRegistry(store, logger.Zerolog())
			remotes, err := registry.List(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(remotes)
			}

			if len(remotes) == 0 {
				fmt.Println("No remotes configured")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL")
			for _, r := range remotes {
				fmt.Fprintf(w, "%s\t%s\n", r.Name, r.URL)
			}
			return w.Flush()
		},
	}
}

func newRemotesAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote repository",
		Long: `Add a named remote to the commit repository.

Adding is idempotent: if a remote with the given name already exists it is
left untouched, even when its URL differs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := treestore.Open(cfg.RepoPath, treestore.WithLogger(logger.Zerolog()))
			if err != nil {
				return err
			}
			defer store.Close()

			registry := engine.NewRemoteRegistry(store, logger.Zerolog())
			if err := registry.Ensure(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Printf("Remote %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}
