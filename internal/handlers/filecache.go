// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"container/list"
	"os"
	"sync"
	"time"
)

// =============================================================================
// FILE CACHE
// =============================================================================

// FileCache is an LRU cache of file reads. An entry is served only while
// the file's modification time and size are unchanged.
type FileCache struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	order       *list.List // front = most recently used
	maxEntries  int
	maxSize     int64
	currentSize int64

	hits   int
	misses int
}

type fileCacheEntry struct {
	path    string
	content []byte
	modTime time.Time
	size    int64 // on-disk size when read
}

// FileCacheStats holds cache statistics.
type FileCacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	TotalSize  int64
	MaxSize    int64
	HitRate    float64
}

// NewFileCache creates a cache. Non-positive limits fall back to 100 entries
// and 16MB.
func NewFileCache(maxEntries int, maxSize int64) *FileCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if maxSize <= 0 {
		maxSize = 16 * 1024 * 1024
	}
	return &FileCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		maxSize:    maxSize,
	}
}

// Get returns the cached content for path if the file did not change since
// it was stored.
func (fc *FileCache) Get(path string) ([]byte, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	el, ok := fc.entries[path]
	if !ok {
		fc.misses++
		return nil, false
	}
	entry := el.Value.(*fileCacheEntry)

	info, err := os.Stat(path)
	if err != nil || !info.ModTime().Equal(entry.modTime) || info.Size() != entry.size {
		fc.removeLocked(el)
		fc.misses++
		return nil, false
	}

	fc.order.MoveToFront(el)
	fc.hits++
	return entry.content, true
}

// Put stores content read from path. modTime and size describe the file at
// read time.
func (fc *FileCache) Put(path string, content []byte, modTime time.Time, size int64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	contentSize := int64(len(content))
	if contentSize > fc.maxSize/10 {
		return
	}

	if el, ok := fc.entries[path]; ok {
		fc.removeLocked(el)
	}
	for fc.order.Len() > 0 && (fc.currentSize+contentSize > fc.maxSize || fc.order.Len() >= fc.maxEntries) {
		fc.removeLocked(fc.order.Back())
	}

	fc.entries[path] = fc.order.PushFront(&fileCacheEntry{
		path:    path,
		content: content,
		modTime: modTime,
		size:    size,
	})
	fc.currentSize += contentSize
}

// Invalidate removes a file from the cache.
func (fc *FileCache) Invalidate(path string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if el, ok := fc.entries[path]; ok {
		fc.removeLocked(el)
	}
}

// Clear removes all entries from the cache.
func (fc *FileCache) Clear() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.entries = make(map[string]*list.Element)
	fc.order.Init()
	fc.currentSize = 0
}

// Stats returns cache statistics.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	hitRate := 0.0
	if total := fc.hits + fc.misses; total > 0 {
		hitRate = float64(fc.hits) / float64(total)
	}
	return FileCacheStats{
		Hits:       fc.hits,
		Misses:     fc.misses,
		EntryCount: fc.order.Len(),
		TotalSize:  fc.currentSize,
		MaxSize:    fc.maxSize,
		HitRate:    hitRate,
	}
}

// removeLocked drops el (must hold lock).
func (fc *FileCache) removeLocked(el *list.Element) {
	entry := fc.order.Remove(el).(*fileCacheEntry)
	delete(fc.entries, entry.path)
	fc.currentSize -= int64(len(entry.content))
}
