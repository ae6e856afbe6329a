// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrDatabaseError = errors.New("database error")
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotUnderRoot  = errors.New("path is not under an indexed root")
	ErrClosed        = errors.New("index closed")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds index configuration
type Config struct {
	// DatabasePath is where to store the SQLite database
	DatabasePath string

	// Extensions limits indexing to these file extensions (with dot,
	// case-insensitive). Empty means every file.
	Extensions []string

	// MaxFileSize is the maximum file size to index (bytes)
	MaxFileSize int64

	// IgnorePatterns are glob patterns matched against base names
	IgnorePatterns []string

	// WatchDebounce is the debounce duration for file change events
	WatchDebounce time.Duration

	// OnChange, if set, is called from the watcher with the path of every
	// written, removed or renamed file, before the debounce.
	OnChange func(path string)

	Logger *zap.Logger
}

// DefaultConfig returns default configuration
func DefaultConfig(dbPath string) *Config {
	return &Config{
		DatabasePath: dbPath,
		Extensions:   []string{".txt", ".md"},
		MaxFileSize:  10 * 1024 * 1024, // 10MB
		IgnorePatterns: []string{
			".git", ".svn", ".hg", ".DS_Store",
			"node_modules", "__pycache__", ".venv", "venv",
			".Trash", "Library",
		},
		WatchDebounce: 500 * time.Millisecond,
	}
}

// =============================================================================
// INDEX
// =============================================================================

// File is one indexed file.
type File struct {
	Path     string
	Root     string
	Basename string
	Size     int64
	ModTime  time.Time
}

// Index is a SQLite-backed file name index. Safe for concurrent use.
type Index struct {
	db      *sql.DB
	config  *Config
	logger  *zap.Logger
	exts    map[string]bool
	mu      sync.Mutex
	watcher *Watcher
	closed  bool
}

// Open opens or creates the index database.
func Open(config *Config) (*Index, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.DatabasePath == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make(map[string]bool, len(config.Extensions))
	for _, e := range config.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Index{db: db, config: config, logger: logger, exts: exts}, nil
}

// Close stops the watcher and closes the database.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	if idx.watcher != nil {
		idx.watcher.Close()
		idx.watcher = nil
	}
	return idx.db.Close()
}

// =============================================================================
// INDEXING
// =============================================================================

// AddRoot registers dir as a root and indexes it. It returns the number of
// files indexed under dir. Adding a root twice re-indexes it.
func (idx *Index) AddRoot(ctx context.Context, dir string) (int, error) {
	root, err := cleanDir(dir)
	if err != nil {
		return 0, err
	}

	if _, err := idx.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO roots (path, added_at) VALUES (?, ?)",
		root, time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	n, err := idx.indexRoot(ctx, root)
	if err != nil {
		return 0, err
	}

	idx.mu.Lock()
	w := idx.watcher
	idx.mu.Unlock()
	if w != nil {
		w.addRecursive(root)
	}
	return n, nil
}

// Rebuild re-walks every root concurrently.
func (idx *Index) Rebuild(ctx context.Context) error {
	roots, err := idx.Roots()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		g.Go(func() error {
			n, err := idx.indexRoot(ctx, root)
			if err != nil {
				return fmt.Errorf("index %s: %w", root, err)
			}
			idx.logger.Debug("root indexed", zap.String("root", root), zap.Int("files", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	_, err = idx.db.Exec("UPDATE metadata SET value = ? WHERE key = 'last_full_index'", time.Now().Unix())
	return err
}

// indexRoot walks root and replaces its rows in one transaction.
func (idx *Index) indexRoot(ctx context.Context, root string) (int, error) {
	files, err := idx.walk(ctx, root)
	if err != nil {
		return 0, err
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM files WHERE root = ?", root); err != nil {
		return 0, fmt.Errorf("failed to clear root: %w", err)
	}
	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, f := range files {
		if _, err := stmt.Exec(f.Path, f.Root, f.Basename, nameKey(f.Basename), f.Size, f.ModTime.Unix(), now); err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(files), nil
}

const upsertSQL = `
	INSERT INTO files (path, root, basename, name_key, size, mod_time, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		root = excluded.root,
		basename = excluded.basename,
		name_key = excluded.name_key,
		size = excluded.size,
		mod_time = excluded.mod_time,
		indexed_at = excluded.indexed_at
`

// walk collects the indexable files under root.
func (idx *Index) walk(ctx context.Context, root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && idx.shouldIgnore(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !idx.wants(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > idx.config.MaxFileSize {
			return nil
		}
		files = append(files, fileFromInfo(path, root, info))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Upsert indexes or refreshes a single file. Files outside every root,
// ignored files and files with other extensions are skipped silently.
func (idx *Index) Upsert(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx.Remove(path)
		}
		return err
	}
	if !info.Mode().IsRegular() || !idx.wants(path) || info.Size() > idx.config.MaxFileSize {
		return nil
	}

	root, err := idx.rootFor(path)
	if err != nil {
		if errors.Is(err, ErrNotUnderRoot) {
			return nil
		}
		return err
	}

	f := fileFromInfo(path, root, info)
	_, err = idx.db.Exec(upsertSQL, f.Path, f.Root, f.Basename, nameKey(f.Basename), f.Size, f.ModTime.Unix(), time.Now().Unix())
	return err
}

// Remove drops path, and everything below it when it was a directory.
func (idx *Index) Remove(path string) error {
	path = filepath.Clean(path)
	_, err := idx.db.Exec(
		"DELETE FROM files WHERE path = ? OR substr(path, 1, ?) = ?",
		path, len(path)+1, path+string(filepath.Separator))
	return err
}

// =============================================================================
// QUERIES
// =============================================================================

// Search returns files whose name contains term, case-insensitively,
// ordered by path. limit <= 0 means no limit.
func (idx *Index) Search(term string, limit int) ([]File, error) {
	key := nameKey(strings.TrimSpace(term))
	if key == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := idx.db.Query(`
		SELECT path, root, basename, size, mod_time
		FROM files
		WHERE instr(name_key, ?) > 0
		ORDER BY path
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var (
			f   File
			mod int64
		)
		if err := rows.Scan(&f.Path, &f.Root, &f.Basename, &f.Size, &mod); err != nil {
			return nil, err
		}
		f.ModTime = time.Unix(mod, 0)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Count returns the number of indexed files.
func (idx *Index) Count() (int, error) {
	var n int
	err := idx.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n)
	return n, err
}

// Roots returns the registered roots in path order.
func (idx *Index) Roots() ([]string, error) {
	rows, err := idx.db.Query("SELECT path FROM roots ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

// rootFor returns the longest registered root containing path.
func (idx *Index) rootFor(path string) (string, error) {
	roots, err := idx.Roots()
	if err != nil {
		return "", err
	}
	best := ""
	for _, r := range roots {
		if (path == r || strings.HasPrefix(path, r+string(filepath.Separator))) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return "", ErrNotUnderRoot
	}
	return best, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// shouldIgnore checks if a file/directory should be ignored
func (idx *Index) shouldIgnore(name string) bool {
	for _, pattern := range idx.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// wants reports whether path has an indexed extension and is not ignored.
func (idx *Index) wants(path string) bool {
	if idx.shouldIgnore(filepath.Base(path)) {
		return false
	}
	if len(idx.exts) == 0 {
		return true
	}
	return idx.exts[strings.ToLower(filepath.Ext(path))]
}

func fileFromInfo(path, root string, info fs.FileInfo) File {
	return File{
		Path:     path,
		Root:     root,
		Basename: norm.NFC.String(filepath.Base(path)),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
}

// nameKey is the normalized search form of a file name.
func nameKey(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// cleanDir expands ~, makes dir absolute and checks it is a directory.
func cleanDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, abs)
	}
	return abs, nil
}
