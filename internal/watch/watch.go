// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch re-runs verification when specification or test files
// change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pdiddy/spectrace/pkg/types"
)

// Handler is called once per settled burst of changes with the changed
// paths, sorted. A returned error is logged and watching continues.
type Handler func(ctx context.Context, changed []string) error

// Watcher watches directory trees for changes to files with the configured
// extensions.
type Watcher struct {
	roots    []string
	exts     map[string]bool
	exclude  map[string]bool
	debounce time.Duration
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithExcludeDirs skips directories with these base names.
func WithExcludeDirs(dirs []string) Option {
	return func(w *Watcher) {
		for _, d := range dirs {
			w.exclude[d] = true
		}
	}
}

// New returns a Watcher over roots configured by cfg.
func New(cfg types.WatchConfig, roots []string, opts ...Option) *Watcher {
	def := types.DefaultConfig().Watch
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = def.Extensions
	}
	w := &Watcher{
		roots:    roots,
		exts:     make(map[string]bool, len(cfg.Extensions)),
		exclude:  make(map[string]bool),
		debounce: cfg.Debounce,
		logger:   zap.NewNop(),
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.exts[strings.ToLower(ext)] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Relevant reports whether a change to path should trigger a run.
func (w *Watcher) Relevant(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// Run watches until ctx is cancelled, calling fn after each burst of
// relevant changes has been quiet for the debounce interval. It returns
// nil on cancellation.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	watched := 0
	for _, root := range w.roots {
		n, err := w.addTree(fsw, root)
		if err != nil {
			return err
		}
		watched += n
	}
	if watched == 0 {
		return errors.New("no directories to watch")
	}
	w.logger.Info("watching", zap.Strings("roots", w.roots), zap.Int("dirs", watched), zap.Duration("debounce", w.debounce))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if _, err := w.addTree(fsw, ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Relevant(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-fire:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			w.logger.Debug("change settled", zap.Strings("paths", changed))
			if err := fn(ctx, changed); err != nil {
				w.logger.Warn("handler failed", zap.Error(err))
			}
		}
	}
}

// addTree watches root and every non-excluded directory below it. A
// missing root is skipped.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if p != root && (w.exclude[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("path", p), zap.Error(err))
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("walking %s: %w", root, err)
	}
	return n, nil
}
