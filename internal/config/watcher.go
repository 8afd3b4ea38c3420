// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the write bursts editors produce when saving.
const debounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and
// delivers the fresh Config to a callback. A reload that fails
// validation is logged and dropped; the previous config stays active.
type Watcher struct {
	path     string
	notifier *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// Watch starts watching path and invokes onChange with each valid
// reload. Close stops the watcher.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on
	// save, which drops a direct file watch.
	if err := notifier.Add(filepath.Dir(path)); err != nil {
		notifier.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		notifier: notifier,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// run consumes filesystem events until Close.
func (w *Watcher) run() {
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)

		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

// reload parses the file and hands the result to the callback.
func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		log.Printf("Ignoring config reload: %v", err)
		return
	}
	w.onChange(cfg)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.notifier.Close()
}
