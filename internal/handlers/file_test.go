// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/index"
	"github.com/jeranaias/tagctx/internal/plugin"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type fakeIndex struct {
	roots  []string
	files  []index.File
	addErr error
	terms  []string
}

func (f *fakeIndex) AddRoot(_ context.Context, dir string) (int, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.roots = append(f.roots, dir)
	return 1, nil
}

func (f *fakeIndex) Search(term string, limit int) ([]index.File, error) {
	f.terms = append(f.terms, term)
	if limit > 0 && len(f.files) > limit {
		return f.files[:limit], nil
	}
	return f.files, nil
}

// =============================================================================
// EXPANSION TESTS
// =============================================================================

func TestFile_Expand(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "notes.md", []byte("# Notes\n"))

	h := NewFile(FileOptions{})
	conv := conversation.New()
	req := plugin.NewRequest("")

	out, err := h.Expand(context.Background(), "@"+path, conv, req)
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:notes.md", out)

	b := conv.Block("notes.md")
	require.NotNil(t, b)
	assert.Equal(t, path, b.Source)
	assert.Equal(t, conversation.TypePath, b.Type)
	assert.Equal(t, "# Notes\n", b.Text())
	assert.Equal(t, "📁", b.Icon)
}

func TestFile_Expand_SameFileTwiceIsOneBlock(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.txt", []byte("alpha"))

	reg, err := plugin.NewRegistry(plugin.WithHandlers(NewFile(FileOptions{})))
	require.NoError(t, err)
	d := plugin.NewDispatcher(reg)
	conv := conversation.New()

	first, ok := dispatch(context.Background(), d, "read @"+path, conv)
	require.True(t, ok)
	second, ok := dispatch(context.Background(), d, `again @"`+path+`"`, conv)
	require.True(t, ok)

	assert.Equal(t, "read RESOURCE:a.txt", first)
	assert.Equal(t, "again RESOURCE:a.txt", second)
	assert.Len(t, conv.Blocks, 1)
}

func TestFile_Expand_SameBasenameDifferentDirs(t *testing.T) {
	dir := t.TempDir()
	one := writeTemp(t, dir, filepath.Join("one", "todo.md"), []byte("1"))
	two := writeTemp(t, dir, filepath.Join("two", "todo.md"), []byte("2"))

	h := NewFile(FileOptions{})
	conv := conversation.New()
	req := plugin.NewRequest("")

	a, err := h.Expand(context.Background(), "@"+one, conv, req)
	require.NoError(t, err)
	b, err := h.Expand(context.Background(), "@"+two, conv, req)
	require.NoError(t, err)

	assert.Equal(t, "RESOURCE:todo.md", a)
	assert.Equal(t, "RESOURCE:todo.md-1", b)
}

func TestFile_Expand_QuotedPathWithSpaces(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "my notes.md", []byte("spaced"))

	conv := conversation.New()
	out, err := NewFile(FileOptions{}).Expand(context.Background(), `@"`+path+`"`, conv, plugin.NewRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:my notes.md", out)
}

func TestFile_Expand_HomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeTemp(t, home, "home.txt", []byte("at home"))

	conv := conversation.New()
	out, err := NewFile(FileOptions{}).Expand(context.Background(), "@~/home.txt", conv, plugin.NewRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:home.txt", out)
	assert.Equal(t, filepath.Join(home, "home.txt"), conv.Blocks[0].Source)
}

func TestFile_Expand_Errors(t *testing.T) {
	dir := t.TempDir()
	binary := writeTemp(t, dir, "blob.bin", []byte{'a', 0, 'b'})

	tests := []struct {
		name string
		tag  string
		want error
	}{
		{"missing", "@" + filepath.Join(dir, "missing.md"), ErrFileNotFound},
		{"directory", "@" + dir, ErrIsDirectory},
		{"binary", "@" + binary, ErrBinaryFile},
		{"other user's home", "@~bob/notes.md", ErrInvalidPath},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := conversation.New()
			_, err := NewFile(FileOptions{}).Expand(context.Background(), tc.tag, conv, plugin.NewRequest(""))
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, conv.Blocks)
		})
	}
}

func TestFile_Expand_TruncatesLargeFiles(t *testing.T) {
	dir := t.TempDir()
	// 9 ASCII bytes then a 3-byte rune straddling the 10 byte limit.
	path := writeTemp(t, dir, "big.txt", []byte("123456789€ tail"))

	conv := conversation.New()
	_, err := NewFile(FileOptions{MaxContextBytes: 10}).Expand(context.Background(), "@"+path, conv, plugin.NewRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "123456789", conv.Blocks[0].Text())
}

func TestFile_Expand_UsesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "c.txt", []byte("cached"))
	cache := NewFileCache(10, 0)
	h := NewFile(FileOptions{Cache: cache})

	for i := 0; i < 2; i++ {
		_, err := h.Expand(context.Background(), "@"+path, conversation.New(), plugin.NewRequest(""))
		require.NoError(t, err)
	}
	stats := cache.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}

// =============================================================================
// CONFIG TAG TESTS
// =============================================================================

func TestFile_OnConfigTag(t *testing.T) {
	idx := &fakeIndex{}
	h := NewFile(FileOptions{Index: idx})

	require.NoError(t, h.OnConfigTag(IndexFilesTag, ` "/srv/notes" `))
	assert.Equal(t, []string{"/srv/notes"}, idx.roots)

	t.Setenv("NOTES_DIR", "/env/notes")
	require.NoError(t, h.OnConfigTag(IndexFilesTag, "$NOTES_DIR"))
	assert.Equal(t, "/env/notes", idx.roots[1])

	idx.addErr = index.ErrInvalidPath
	assert.ErrorIs(t, h.OnConfigTag(IndexFilesTag, "/nope"), index.ErrInvalidPath)

	assert.Error(t, h.OnConfigTag("@Other", "x"))
	assert.ErrorIs(t, NewFile(FileOptions{}).OnConfigTag(IndexFilesTag, "/x"), ErrNoIndex)
}

// =============================================================================
// AUTOCOMPLETE TESTS
// =============================================================================

func TestFile_Autocomplete_LivePath(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "Beta.md", nil)
	writeTemp(t, dir, "alpha.txt", nil)
	writeTemp(t, dir, ".hidden", nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	h := NewFile(FileOptions{})
	ctx := context.Background()

	got := h.Autocomplete(ctx, "@"+dir+"/", 10)
	assert.Equal(t, []string{
		`@"` + dir + `/alpha.txt"`,
		`@"` + dir + `/archive/"`,
		`@"` + dir + `/Beta.md"`,
	}, got)

	got = h.Autocomplete(ctx, `@"`+dir+"/b", 10)
	assert.Equal(t, []string{`@"` + dir + `/Beta.md"`}, got)

	got = h.Autocomplete(ctx, "@"+dir+"/.h", 10)
	assert.Equal(t, []string{`@"` + dir + `/.hidden"`}, got)

	got = h.Autocomplete(ctx, "@"+dir+"/a", 1)
	assert.Len(t, got, 1)

	assert.Empty(t, h.Autocomplete(ctx, "@/definitely/not/here/", 10))
}

func TestFile_Autocomplete_AcceptedDirectoryContinues(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, filepath.Join("sub", "inner.md"), nil)

	got := NewFile(FileOptions{}).Autocomplete(context.Background(), `@"`+dir+`/sub/"`, 10)
	assert.Equal(t, []string{`@"` + dir + `/sub/inner.md"`}, got)
}

func TestFile_Autocomplete_Index(t *testing.T) {
	idx := &fakeIndex{files: []index.File{
		{Path: "/docs/a/report.md", ModTime: time.Now()},
		{Path: "/docs/b/report.txt"},
	}}
	h := NewFile(FileOptions{Index: idx})
	ctx := context.Background()

	assert.Nil(t, h.Autocomplete(ctx, "@re", 10), "below minimum length")
	assert.Empty(t, idx.terms)

	got := h.Autocomplete(ctx, "@rep", 10)
	assert.Equal(t, []string{`@"/docs/a/report.md"`, `@"/docs/b/report.txt"`}, got)
	assert.Equal(t, []string{"rep"}, idx.terms)

	assert.Nil(t, NewFile(FileOptions{}).Autocomplete(ctx, "@report", 10))
}

func TestFile_DisplayString(t *testing.T) {
	h := NewFile(FileOptions{})
	tests := map[string]string{
		`@"/docs/a/report.md"`: "📁report.md",
		`@"~/dev/"`:            "📁dev/",
		"@/tmp/x.txt":          "📁x.txt",
		"plain":                "plain",
	}
	for raw, want := range tests {
		if got := h.DisplayString(raw); got != want {
			t.Errorf("DisplayString(%q) = %q, want %q", raw, got, want)
		}
	}
}

// =============================================================================
// FILE CACHE TESTS
// =============================================================================

func TestFileCache_InvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "f.txt", []byte("one"))
	info, err := os.Stat(path)
	require.NoError(t, err)

	cache := NewFileCache(10, 0)
	cache.Put(path, []byte("one"), info.ModTime(), info.Size())

	got, ok := cache.Get(path)
	require.True(t, ok)
	assert.Equal(t, "one", string(got))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0644))
	_, ok = cache.Get(path)
	assert.False(t, ok, "size change invalidates")
	assert.Equal(t, 0, cache.Stats().EntryCount)
}

func TestFileCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(2, 0)
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		p := writeTemp(t, dir, name, []byte(name))
		info, _ := os.Stat(p)
		paths = append(paths, p)
		cache.Put(p, []byte(name), info.ModTime(), info.Size())
		if name == "b" {
			// Touch a so b becomes the eviction candidate.
			_, ok := cache.Get(paths[0])
			require.True(t, ok)
		}
	}

	_, okA := cache.Get(paths[0])
	_, okB := cache.Get(paths[1])
	_, okC := cache.Get(paths[2])
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestFileCache_SkipsOversizedAndClears(t *testing.T) {
	cache := NewFileCache(10, 100)
	cache.Put("/big", []byte(strings.Repeat("x", 11)), time.Now(), 11)
	assert.Equal(t, 0, cache.Stats().EntryCount)

	cache.Put("/small", []byte("x"), time.Now(), 1)
	cache.Invalidate("/small")
	assert.Equal(t, 0, cache.Stats().EntryCount)

	cache.Put("/small", []byte("x"), time.Now(), 1)
	cache.Clear()
	stats := cache.Stats()
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, int64(0), stats.TotalSize)
}
