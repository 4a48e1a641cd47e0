package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawgate/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfg := config.Default()

	var (
		enabledChannels []string
		telegramToken   string
		discordToken    string
		bridgeURL       string
		dmPolicy        = "pairing"
		gatewayToken    string
		ownerIDs        string
	)

	channelForm := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which channels should ClawGate connect?").
				Options(
					huh.NewOption("Telegram", "telegram"),
					huh.NewOption("Discord", "discord"),
					huh.NewOption("WhatsApp (bridge)", "whatsapp"),
				).
				Value(&enabledChannels),
		),
	)
	if err := channelForm.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "setup cancelled:", err)
		os.Exit(1)
	}

	var fields []huh.Field
	for _, ch := range enabledChannels {
		switch ch {
		case "telegram":
			fields = append(fields, huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather").
				EchoMode(huh.EchoModePassword).
				Value(&telegramToken))
		case "discord":
			fields = append(fields, huh.NewInput().
				Title("Discord bot token").
				EchoMode(huh.EchoModePassword).
				Value(&discordToken))
		case "whatsapp":
			fields = append(fields, huh.NewInput().
				Title("WhatsApp bridge WebSocket URL").
				Placeholder("ws://localhost:3001").
				Value(&bridgeURL))
		}
	}
	fields = append(fields,
		huh.NewSelect[string]().
			Title("DM policy for unknown senders").
			Options(
				huh.NewOption("Pairing handshake (recommended)", "pairing"),
				huh.NewOption("Allowlist only", "allowlist"),
				huh.NewOption("Open (anyone can DM)", "open"),
				huh.NewOption("Disabled", "disabled"),
			).
			Value(&dmPolicy),
		huh.NewInput().
			Title("Gateway auth token").
			Description("Required by WebSocket clients; leave empty to allow all (dev only)").
			EchoMode(huh.EchoModePassword).
			Value(&gatewayToken),
		huh.NewInput().
			Title("Owner sender IDs").
			Description("Comma-separated; owners may always run control commands").
			Value(&ownerIDs),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "setup cancelled:", err)
		os.Exit(1)
	}

	for _, ch := range enabledChannels {
		switch ch {
		case "telegram":
			cfg.Channels.Telegram.Enabled = true
			cfg.Channels.Telegram.Token = strings.TrimSpace(telegramToken)
			cfg.Channels.Telegram.DMPolicy = dmPolicy
		case "discord":
			cfg.Channels.Discord.Enabled = true
			cfg.Channels.Discord.Token = strings.TrimSpace(discordToken)
			cfg.Channels.Discord.DMPolicy = dmPolicy
		case "whatsapp":
			cfg.Channels.WhatsApp.Enabled = true
			cfg.Channels.WhatsApp.BridgeURL = strings.TrimSpace(bridgeURL)
			cfg.Channels.WhatsApp.DMPolicy = dmPolicy
		}
	}
	cfg.Gateway.Token = strings.TrimSpace(gatewayToken)
	for _, id := range strings.Split(ownerIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Gateway.OwnerIDs = append(cfg.Gateway.OwnerIDs, id)
		}
	}

	cfgPath := resolveConfigPath()
	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write config:", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", cfgPath)
	fmt.Println("Start the gateway with:  clawgate")
}
