package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"deputy/internal/logging"
)

// Watch watches the config file and invokes onChange with the freshly loaded
// configuration whenever it is modified. Edits to approval.auto_approve_tools
// take effect without a restart this way. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, onChange func(*Config)) error {
	configPath := getConfigPath()
	if configPath == "" {
		return ConfigError("could not determine config path to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files via rename, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		return err
	}

	var debounce *time.Timer
	reload := func() {
		cfg, err := Load()
		if err != nil {
			logging.Warn("config reload failed", "error", err)
			return
		}
		logging.Info("config reloaded", "path", configPath)
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors fire several events per save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("config watcher error", "error", err)
		}
	}
}
