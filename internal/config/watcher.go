package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the write bursts editors and configmap updates
// produce into a single reload.
const debounceWindow = 500 * time.Millisecond

// SchemaWatcher re-applies the schema document whenever the file changes.
// Kubernetes configmap mounts replace the file via rename, so the watch is
// on the parent directory rather than the file itself.
type SchemaWatcher struct {
	path   string
	apply  func() error
	logger *slog.Logger
}

// NewSchemaWatcher creates a watcher for the schema document at path. The
// apply callback is invoked after each settled change; re-reading the
// document is the callback's job so a half-written file never poisons
// watcher state.
func NewSchemaWatcher(path string, logger *slog.Logger, apply func() error) *SchemaWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaWatcher{path: path, logger: logger, apply: apply}
}

// Run watches until ctx is done. Reload failures are logged and the previous
// schema stays in effect.
func (w *SchemaWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watching schema document", "path", w.path)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := w.apply(); err != nil {
				w.logger.Error("schema reload failed, keeping previous schema", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("schema document reloaded", "path", w.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("schema watch error", "error", err)
		}
	}
}
