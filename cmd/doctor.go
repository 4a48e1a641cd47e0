package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"runtime"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("clawgate doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	issues := cfg.Validate()
	if len(issues) == 0 {
		fmt.Println("  Validation: OK")
	} else {
		fmt.Printf("  Validation: %d issue(s)\n", len(issues))
		for _, issue := range issues {
			fmt.Printf("    - %s\n", issue)
		}
	}

	fmt.Println()
	fmt.Println("  Channels:")
	printChannel("telegram", cfg.Channels.Telegram.Enabled, cfg.Channels.Telegram.Token != "")
	printChannel("discord", cfg.Channels.Discord.Enabled, cfg.Channels.Discord.Token != "")
	printChannel("whatsapp", cfg.Channels.WhatsApp.Enabled, cfg.Channels.WhatsApp.BridgeURL != "")

	fmt.Println()
	fmt.Printf("  Gateway:  %s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token == "" {
		fmt.Println(" (WARNING: no auth token set)")
	} else {
		fmt.Println(" (token set)")
	}

	if cfg.IsManagedMode() {
		fmt.Println()
		fmt.Print("  Database: postgres")
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr == nil {
			dbErr = db.Ping()
			db.Close()
		}
		if dbErr != nil {
			fmt.Printf(" (UNREACHABLE: %s)\n", dbErr)
		} else {
			fmt.Println(" (OK)")
		}
	} else {
		fmt.Println()
		fmt.Printf("  Storage:  file (%s)\n", cfg.Pairing.Storage)
	}
}

func printChannel(name string, enabled, credentialed bool) {
	state := "disabled"
	switch {
	case enabled && credentialed:
		state = "enabled"
	case enabled && !credentialed:
		state = "enabled, MISSING CREDENTIALS"
	}
	fmt.Printf("    %-10s %s\n", name+":", state)
}
