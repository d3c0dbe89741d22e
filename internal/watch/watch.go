// Package watch rebuilds a spec whenever its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events a single editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls OnChange serially after the spec file settles with new
// content. Saves that leave the content unchanged are ignored.
type Watcher struct {
	Path     string
	Debounce time.Duration
	// OnChange runs in the watching goroutine; events that arrive meanwhile
	// are coalesced into at most one further call. Its error is logged and
	// watching continues.
	OnChange func(ctx context.Context) error
	// RunFirst calls OnChange once as soon as watching has begun.
	RunFirst bool
	Logger   *zap.Logger
}

// Run watches until ctx is done. The parent directory is watched rather
// than the file, since editors commonly replace files by rename.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	log.Info("watching", zap.String("path", path))

	last, _ := os.ReadFile(path)
	fire := func() {
		if err := w.OnChange(ctx); err != nil && ctx.Err() == nil {
			log.Warn("rebuild failed", zap.Error(err))
		}
	}
	if w.RunFirst {
		fire()
	}

	var timer *time.Timer
	var settled <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			settled = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))

		case <-settled:
			settled = nil
			data, err := os.ReadFile(path)
			if err != nil {
				log.Debug("spec unreadable, waiting for next change", zap.Error(err))
				continue
			}
			if string(data) == string(last) {
				continue
			}
			last = data
			log.Info("spec changed", zap.String("path", path))
			fire()
		}
	}
}
