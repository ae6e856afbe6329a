// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher applies file system events under the index roots to the index.
type Watcher struct {
	idx      *Index
	watcher  *fsnotify.Watcher
	debounce time.Duration
	mu       sync.Mutex
	pending  map[string]time.Time // File path -> last change time
	ctx      context.Context
	cancel   context.CancelFunc
	done     sync.WaitGroup
}

// Watch starts watching every root. Calling it again is a no-op.
func (idx *Index) Watch() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	if idx.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		idx:      idx,
		watcher:  fsw,
		debounce: idx.config.WatchDebounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}

	roots, err := idx.Roots()
	if err != nil {
		w.Close()
		return err
	}
	for _, root := range roots {
		w.addRecursive(root)
	}

	w.done.Add(2)
	go w.processEvents()
	go w.processPending()

	idx.watcher = w
	idx.logger.Debug("index watch started", zap.Int("roots", len(roots)))
	return nil
}

// addRecursive adds a directory and all its subdirectories to the watch list
func (w *Watcher) addRecursive(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && w.idx.shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.idx.logger.Debug("watch add failed", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// processEvents processes file system events
func (w *Watcher) processEvents() {
	defer w.done.Done()
	defer func() {
		if r := recover(); r != nil {
			w.idx.logger.Error("index watcher panic", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.idx.logger.Warn("index watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.idx.shouldIgnore(info.Name()) {
				w.addRecursive(event.Name)
				w.queueTree(event.Name)
			}
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.notify(event.Name)
		if err := w.idx.Remove(event.Name); err != nil {
			w.idx.logger.Warn("index remove failed", zap.String("path", event.Name), zap.Error(err))
		}
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.notify(event.Name)
		w.queue(event.Name)
	}
}

func (w *Watcher) notify(path string) {
	if fn := w.idx.config.OnChange; fn != nil {
		fn(path)
	}
}

// queue records a change; processPending applies it after the debounce.
func (w *Watcher) queue(path string) {
	if !w.idx.wants(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// queueTree queues every file below a newly created directory, since events
// for files moved in with it are not delivered.
func (w *Watcher) queueTree(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			w.queue(path)
		}
		return nil
	})
}

// processPending processes pending file changes with debounce
func (w *Watcher) processPending() {
	defer w.done.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				if err := w.idx.Upsert(path); err != nil {
					w.idx.logger.Warn("index update failed", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}

// Close stops watching and waits for the event loops to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
