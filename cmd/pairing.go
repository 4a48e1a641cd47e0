package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/pairing"
	"github.com/nextlevelbuilder/clawgate/internal/store"
	"github.com/nextlevelbuilder/clawgate/internal/store/file"
	"github.com/nextlevelbuilder/clawgate/internal/store/pg"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage pairing requests and approved senders",
	}

	cmd.AddCommand(pairingListCmd())
	cmd.AddCommand(pairingApproveCmd())
	cmd.AddCommand(pairingRevokeCmd())
	cmd.AddCommand(pairingAllowedCmd())

	return cmd
}

// openPairingService builds the pairing service against the same store the
// gateway uses, so CLI approvals are visible to a running gateway that
// shares the storage backend.
func openPairingService() (*pairing.Service, *config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var stores *store.Stores
	if cfg.IsManagedMode() {
		stores, err = pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
	} else {
		stores, err = file.NewFileStores(store.StoreConfig{
			PairingDir: config.ExpandHome(cfg.Pairing.Storage),
		})
	}
	if err != nil {
		return nil, nil, err
	}

	svc := pairing.New(stores.Pairing,
		time.Duration(cfg.Pairing.TTLHours)*time.Hour,
		time.Duration(cfg.Pairing.DebounceSeconds)*time.Second,
	)
	return svc, cfg, nil
}

func pairingListCmd() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		Run: func(cmd *cobra.Command, args []string) {
			svc, _, err := openPairingService()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}

			reqs, err := svc.List(context.Background(), channel)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			if len(reqs) == 0 {
				fmt.Println("No pending pairing requests.")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tSUBJECT\tCODE\tREQUESTED")
			for _, r := range reqs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.Channel, r.Subject, r.Code, r.CreatedAt.Format(time.RFC3339))
			}
			w.Flush()
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "filter by channel")
	return cmd
}

func pairingApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <code>",
		Short: "Approve a pairing request by code",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, _, err := openPairingService()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}

			req, err := svc.Approve(context.Background(), args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			fmt.Printf("Approved %s on %s.\n", req.Subject, req.Channel)
		},
	}
}

func pairingRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <channel> <subject>",
		Short: "Remove an approved sender or room",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			svc, _, err := openPairingService()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}

			if err := svc.Revoke(context.Background(), args[0], args[1]); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			fmt.Printf("Revoked %s on %s.\n", args[1], args[0])
		},
	}
}

func pairingAllowedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allowed <channel>",
		Short: "List approved senders for a channel",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, _, err := openPairingService()
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}

			allowed, err := svc.AllowFrom(context.Background(), args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
			if len(allowed) == 0 {
				fmt.Println("No approved senders.")
				return
			}
			for _, subject := range allowed {
				fmt.Println(subject)
			}
		},
	}
}
