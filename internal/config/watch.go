package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of events an atomic editor save
// produces into a single reload.
const debounceWindow = 250 * time.Millisecond

// Watch monitors the config file at path and calls apply with the newly
// loaded Config after each change. It blocks until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped — the
// previous digest set stays active.
func Watch(ctx context.Context, path string, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writes and creates both count: editors that save atomically
			// replace the file rather than writing in place.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.After(debounceWindow)
			}

		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous digest set",
					"path", path, "err", err)
			} else {
				slog.Info("config: reloaded", "path", path, "digests", len(cfg.Digests))
				apply(cfg)
			}
			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
