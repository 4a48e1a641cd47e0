package channels

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ChannelFactory builds one channel adapter. Factories close over the live
// config and shared collaborators (bus, pipeline, pairing service) so the
// loader itself stays free of adapter imports.
type ChannelFactory func() (Channel, error)

// Loader builds enabled channels from config and registers them with the
// Manager. Reload tears the managed channels down and rebuilds them, which
// is how config hot reloads that change tokens or enablement take effect.
type Loader struct {
	manager   *Manager
	factories map[string]ChannelFactory
	enabled   func(name string) bool

	mu     sync.Mutex
	loaded map[string]struct{}
}

// NewLoader creates a Loader. enabled reports whether a channel name is
// currently enabled in config; it is re-evaluated on every load.
func NewLoader(mgr *Manager, enabled func(name string) bool) *Loader {
	return &Loader{
		manager:   mgr,
		factories: make(map[string]ChannelFactory),
		enabled:   enabled,
		loaded:    make(map[string]struct{}),
	}
}

// RegisterFactory registers a factory for a channel name.
func (l *Loader) RegisterFactory(name string, factory ChannelFactory) {
	l.factories[name] = factory
}

// LoadAll builds and registers every enabled channel. Channels are not
// started here; the caller runs Manager.StartAll once everything is
// registered.
func (l *Loader) LoadAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	registered := 0
	for name, factory := range l.factories {
		if !l.enabled(name) {
			continue
		}
		ch, err := factory()
		if err != nil {
			slog.Error("failed to build channel", "channel", name, "error", err)
			continue
		}
		l.manager.RegisterChannel(name, ch)
		l.loaded[name] = struct{}{}
		registered++
	}

	slog.Info("channels loaded", "count", registered)
	return nil
}

// Reload stops all managed channels and rebuilds them from current config.
// Called from the config watcher when the file changes.
func (l *Loader) Reload(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name := range l.loaded {
		if ch, ok := l.manager.GetChannel(name); ok {
			if err := ch.Stop(ctx); err != nil {
				slog.Warn("failed to stop channel on reload", "channel", name, "error", err)
			}
		}
		l.manager.UnregisterChannel(name)
	}
	l.loaded = make(map[string]struct{})

	// Let external APIs (e.g. Telegram getUpdates) release polling locks
	// before the rebuilt channel reconnects.
	time.Sleep(500 * time.Millisecond)

	registered := 0
	for name, factory := range l.factories {
		if !l.enabled(name) {
			continue
		}
		ch, err := factory()
		if err != nil {
			slog.Error("failed to rebuild channel", "channel", name, "error", err)
			continue
		}
		l.manager.RegisterChannel(name, ch)
		l.loaded[name] = struct{}{}

		if err := ch.Start(ctx); err != nil {
			slog.Error("channel start failed after reload", "channel", name, "error", err)
			// Still registered; shows as not running in status.
		}
		registered++
	}

	slog.Info("channels reloaded", "count", registered)
}

// Stop stops and unregisters all managed channels.
func (l *Loader) Stop(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name := range l.loaded {
		if ch, ok := l.manager.GetChannel(name); ok {
			if err := ch.Stop(ctx); err != nil {
				slog.Warn("failed to stop channel", "channel", name, "error", err)
			}
		}
		l.manager.UnregisterChannel(name)
	}
	l.loaded = make(map[string]struct{})
}
