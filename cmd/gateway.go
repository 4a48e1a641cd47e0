package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/clawgate/internal/admission"
	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/internal/channels"
	"github.com/nextlevelbuilder/clawgate/internal/channels/discord"
	"github.com/nextlevelbuilder/clawgate/internal/channels/telegram"
	"github.com/nextlevelbuilder/clawgate/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/gateway"
	"github.com/nextlevelbuilder/clawgate/internal/pairing"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
	"github.com/nextlevelbuilder/clawgate/internal/store"
	"github.com/nextlevelbuilder/clawgate/internal/store/file"
	"github.com/nextlevelbuilder/clawgate/internal/store/pg"
	"github.com/nextlevelbuilder/clawgate/internal/telemetry"
	"github.com/nextlevelbuilder/clawgate/pkg/protocol"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()

	if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) && os.Getenv("CLAWGATE_TELEGRAM_TOKEN") == "" &&
		os.Getenv("CLAWGATE_DISCORD_TOKEN") == "" && os.Getenv("CLAWGATE_WHATSAPP_BRIDGE_URL") == "" {
		// First run with nothing configured: hand off to the setup wizard.
		fmt.Println("No configuration found. Starting setup wizard...")
		fmt.Println()
		runOnboard()
		return
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, verr := range cfg.Validate() {
		slog.Warn("config validation", "issue", verr.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry (admission decision spans)
	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
	} else {
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			_ = telemetryShutdown(shCtx)
		}()
	}

	// Stores: Postgres in managed mode, file-backed otherwise.
	var stores *store.Stores
	if cfg.IsManagedMode() {
		stores, err = pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
		if err != nil {
			slog.Error("failed to create postgres stores", "error", err)
			os.Exit(1)
		}
		slog.Info("storage backend: postgres")
	} else {
		stores, err = file.NewFileStores(store.StoreConfig{
			PairingDir: config.ExpandHome(cfg.Pairing.Storage),
		})
		if err != nil {
			slog.Error("failed to create file stores", "error", err)
			os.Exit(1)
		}
		slog.Info("storage backend: file", "pairing_dir", cfg.Pairing.Storage)
	}

	// Pairing service with background expiry sweeper.
	pairingSvc := pairing.New(stores.Pairing,
		time.Duration(cfg.Pairing.TTLHours)*time.Hour,
		time.Duration(cfg.Pairing.DebounceSeconds)*time.Second,
	)
	go pairingSvc.RunSweeper(ctx, time.Hour)

	// Session catalog, shared by the pipeline (thread first-seen detection)
	// and the gateway (sessions.list/delete).
	catalog := sessions.NewCatalog(config.ExpandHome(cfg.Sessions.Storage))

	// Core pipeline + bus.
	msgBus := bus.NewMessageBus()
	pipe := admission.NewPipeline(cfg, pairingSvc, admission.NewPendingHistory(), catalog)

	// Channels.
	channelMgr := channels.NewManager(msgBus)
	loader := channels.NewLoader(channelMgr, func(name string) bool {
		switch name {
		case "telegram":
			return cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != ""
		case "discord":
			return cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != ""
		case "whatsapp":
			return cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != ""
		}
		return false
	})
	loader.RegisterFactory("telegram", func() (channels.Channel, error) {
		return telegram.New(cfg, msgBus, pipe, pairingSvc)
	})
	loader.RegisterFactory("discord", func() (channels.Channel, error) {
		return discord.New(cfg, msgBus, pipe, pairingSvc)
	})
	loader.RegisterFactory("whatsapp", func() (channels.Channel, error) {
		return whatsapp.New(cfg, msgBus, pipe, pairingSvc)
	})
	if err := loader.LoadAll(); err != nil {
		slog.Error("failed to load channels", "error", err)
	}

	// Gateway server.
	server := gateway.NewServer(cfg, msgBus, channelMgr, pairingSvc, catalog)

	// Config hot reload: swap config in place and rebuild channels.
	go func() {
		if err := config.Watch(ctx, cfgPath, cfg, func(*config.Config) {
			loader.Reload(ctx)
		}); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
	}()

	// Inbound consumer: admitted contexts → WS clients.
	go consumeInbound(ctx, msgBus, server)

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)

		server.BroadcastEvent(*protocol.NewEvent(protocol.EventShutdown, nil))
		channelMgr.StopAll(context.Background())
		cancel()
	}()

	slog.Info("clawgate gateway starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"channels", channelMgr.GetEnabledChannels(),
		"default_agent", cfg.ResolveDefaultAgentID(),
	)

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
}
