// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	applog "spectra/internal/log"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce collapses the burst of events an editor save produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes every valid result to
// fn. Files that fail to load are logged and skipped, the previous
// configuration stays in effect. Watch blocks until ctx is done.
//
// The directory is watched rather than the file, editors commonly replace
// the file by renaming a temporary one over it.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(*Config)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	applog.Infof("Config: watching %s for changes", abs)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			applog.Warnf("Config: watcher error: %v", err)

		case <-timer.C:
			cfg, err := LoadConfig(abs)
			if err != nil {
				applog.Warnf("Config: ignoring change to %s: %v", abs, err)
				continue
			}
			applog.Infof("Config: reloaded %s", abs)
			fn(cfg)
		}
	}
}
