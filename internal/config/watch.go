package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads cfg in place when the file at path changes and invokes
// onReload after each successful reload. Holders of cfg observe the new
// values on their next read; channel accounts pick up allowlist and policy
// edits without a restart.
//
// Editors typically write via rename, so the watcher monitors the parent
// directory and re-adds interest after each event. Events are debounced
// because a single save can produce several WRITE/CREATE notifications.
func Watch(ctx context.Context, path string, cfg *Config, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		reload := func() {
			fresh, err := Load(path)
			if err != nil {
				slog.Warn("config reload failed, keeping previous config", "path", path, "error", err)
				return
			}
			if errs := fresh.Validate(); len(errs) > 0 {
				for _, e := range errs {
					slog.Warn("config reload: validation issue", "issue", e)
				}
			}
			cfg.ReplaceFrom(fresh)
			slog.Info("config reloaded", "path", path, "hash", cfg.Hash())
			if onReload != nil {
				onReload(cfg)
			}
		}

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(250*time.Millisecond, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
