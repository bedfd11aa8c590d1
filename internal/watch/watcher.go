// Package watch reports schema documents created or rewritten in a
// directory.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/logger"
)

// DefaultDebounce coalesces the burst of write events an editor produces
// when saving a file.
const DefaultDebounce = 200 * time.Millisecond

// Handler is called once per changed .json file after the debounce period.
type Handler func(ctx context.Context, path string)

// Watcher watches a single directory for *.json files.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *logger.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a path must stay quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger for watcher errors.
func WithLogger(log *logger.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// New returns a Watcher for dir.
func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{dir: dir, debounce: DefaultDebounce, log: logger.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done, calling fn for each created or written
// .json file. Removals and renames are ignored.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to create watcher", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to watch "+w.dir, err)
	}
	w.log.InfoWith("watching schemas", map[string]any{"dir": w.dir})

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if relevant(event) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.ErrorWith("watch error", err, map[string]any{"dir": w.dir})

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) >= w.debounce {
					delete(pending, path)
					fn(ctx, path)
				}
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}
