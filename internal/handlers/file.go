// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/index"
	"github.com/jeranaias/tagctx/internal/plugin"
)

const (
	// IndexFilesTag adds a directory to the file index from a shortcut file.
	IndexFilesTag = "@IndexFiles"

	// DefaultMaxContextBytes caps how much of a file is embedded.
	DefaultMaxContextBytes = 10 * 1024

	// DefaultMinSearchChars is how many characters after the marker an
	// index search needs.
	DefaultMinSearchChars = 3
)

// PathPrefixes are the tag prefixes that name a file directly.
var PathPrefixes = []string{"@/", "@~", `@"/`, `@"~`}

// ErrNoIndex is returned by OnConfigTag when no file index is configured.
var ErrNoIndex = errors.New("file index disabled")

// FileIndex is the part of the file index the handler uses.
type FileIndex interface {
	AddRoot(ctx context.Context, dir string) (int, error)
	Search(term string, limit int) ([]index.File, error)
}

// FileOptions configures the file handler.
type FileOptions struct {
	// MaxContextBytes limits how much of each file is read. Longer files
	// are truncated.
	MaxContextBytes int64

	// MinSearchChars is the shortest fragment that triggers an index search.
	MinSearchChars int

	Cache  *FileCache
	Index  FileIndex
	Logger *zap.Logger
}

// File resolves path tags and completes file names.
type File struct {
	maxBytes  int64
	minSearch int
	cache     *FileCache
	index     FileIndex
	logger    *zap.Logger
}

// NewFile returns a file handler.
func NewFile(opts FileOptions) *File {
	f := &File{
		maxBytes:  opts.MaxContextBytes,
		minSearch: opts.MinSearchChars,
		cache:     opts.Cache,
		index:     opts.Index,
		logger:    opts.Logger,
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxContextBytes
	}
	if f.minSearch <= 0 {
		f.minSearch = DefaultMinSearchChars
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Name implements plugin.Handler.
func (f *File) Name() string { return "file" }

// Prefixes implements plugin.Handler.
func (f *File) Prefixes() []string { return PathPrefixes }

// ConfigPrefixes implements plugin.ConfigHandler.
func (f *File) ConfigPrefixes() []string { return []string{IndexFilesTag} }

// MatchAnyAutocomplete implements plugin.CatchAll.
func (f *File) MatchAnyAutocomplete() bool { return true }

// =============================================================================
// EXPANSION
// =============================================================================

// Expand embeds the named file as a path block.
func (f *File) Expand(_ context.Context, tag string, conv *conversation.Conversation, req *plugin.Request) (string, error) {
	path, err := resolvePath(unquote(strings.TrimPrefix(tag, "@")))
	if err != nil {
		return "", err
	}

	content, err := f.read(path)
	if err != nil {
		return "", err
	}

	name := conv.AddContext(norm.NFC.String(filepath.Base(path)), path, conversation.TypePath, content, "📁")
	return req.Reference(name), nil
}

// read returns at most maxBytes of path, through the cache when set.
func (f *File) read(path string) ([]byte, error) {
	if f.cache != nil {
		if content, ok := f.cache.Get(path); ok {
			return content, nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	content, err := io.ReadAll(io.LimitReader(fh, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrBinaryFile, path)
	}
	if info.Size() > f.maxBytes {
		content = trimPartialRune(content)
		f.logger.Debug("file truncated",
			zap.String("path", path),
			zap.Int64("size", info.Size()),
			zap.Int64("limit", f.maxBytes))
	}

	if f.cache != nil {
		f.cache.Put(path, content, info.ModTime(), info.Size())
	}
	return content, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// OnConfigTag handles ["@IndexFiles", "<dir>"] entries.
func (f *File) OnConfigTag(tag, value string) error {
	if tag != IndexFilesTag {
		return fmt.Errorf("unknown config tag %q", tag)
	}
	if f.index == nil {
		return ErrNoIndex
	}

	dir := os.ExpandEnv(unquote(strings.TrimSpace(value)))
	n, err := f.index.AddRoot(context.Background(), dir)
	if err != nil {
		return err
	}
	f.logger.Debug("indexed files", zap.String("dir", dir), zap.Int("files", n))
	return nil
}

// =============================================================================
// AUTOCOMPLETE
// =============================================================================

// Autocomplete lists directory entries for path-like fragments and searches
// the file index for anything else.
func (f *File) Autocomplete(_ context.Context, fragment string, max int) []string {
	for _, p := range PathPrefixes {
		if strings.HasPrefix(fragment, p) {
			return f.completePath(fragment, max)
		}
	}

	term := strings.TrimPrefix(fragment, "@")
	if f.index == nil || utf8.RuneCountInString(term) < f.minSearch {
		return nil
	}

	files, err := f.index.Search(term, max)
	if err != nil {
		f.logger.Warn("index search failed", zap.String("term", term), zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(files))
	for _, file := range files {
		out = append(out, `@"`+file.Path+`"`)
	}
	return out
}

// completePath lists the directory named by fragment, keeping the typed
// directory spelling (e.g. a leading ~) in the suggestions.
func (f *File) completePath(fragment string, max int) []string {
	typed := strings.TrimPrefix(fragment, "@")
	typed = strings.TrimPrefix(typed, `"`)
	typed = strings.TrimSuffix(typed, `"`)

	sep := strings.LastIndex(typed, "/")
	if sep < 0 {
		// "~" alone
		typed += "/"
		sep = len(typed) - 1
	}
	dirRaw, prefix := typed[:sep+1], strings.ToLower(typed[sep+1:])

	dir, err := expandHome(dirRaw)
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	var out []string
	for _, e := range entries {
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		// Skip hidden files unless the fragment starts with a dot
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		raw := dirRaw + name
		if e.IsDir() {
			raw += "/"
		}
		out = append(out, `@"`+raw+`"`)
		if len(out) >= max {
			break
		}
	}
	return out
}

// DisplayString shows a folder icon and the base name, keeping a trailing
// slash for directories.
func (f *File) DisplayString(raw string) string {
	if !strings.HasPrefix(raw, "@") {
		return raw
	}
	typed := unquote(raw[1:])
	if strings.HasSuffix(typed, "/") {
		return "📁" + filepath.Base(strings.TrimSuffix(typed, "/")) + "/"
	}
	return "📁" + filepath.Base(typed)
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// unquote strips one pair of surrounding double quotes, or a lone leading
// one.
func unquote(s string) string {
	if strings.HasPrefix(s, `"`) {
		s = strings.TrimPrefix(s, `"`)
		s = strings.TrimSuffix(s, `"`)
	}
	return s
}

// expandHome replaces a leading ~ with the home directory. Other users'
// homes (~user/...) are rejected.
func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return "", fmt.Errorf("%w: %s: ~user paths are not supported", ErrInvalidPath, p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + strings.TrimPrefix(p, "~"), nil
}

// resolvePath expands ~ and returns a clean absolute path.
func resolvePath(p string) (string, error) {
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size > 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
