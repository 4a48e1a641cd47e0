package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the session catalog",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsDeleteCmd())

	return cmd
}

func openCatalog() (*sessions.Catalog, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return sessions.NewCatalog(config.ExpandHome(cfg.Sessions.Storage)), nil
}

func sessionsListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		Run: func(cmd *cobra.Command, args []string) {
			catalog, err := openCatalog()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}

			entries := catalog.List(agentID)
			if len(entries) == 0 {
				fmt.Println("No sessions.")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tMESSAGES\tUPDATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					e.Key, e.Kind, e.MessageCount, e.Updated.Format(time.RFC3339))
			}
			w.Flush()
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "filter by agent id")
	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a session catalog entry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			catalog, err := openCatalog()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			if err := catalog.Delete(args[0]); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			fmt.Println("Deleted", args[0])
		},
	}
}
