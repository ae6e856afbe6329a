// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		data []byte
	}{
		{"basic", "test.txt", []byte("hello, world!")},
		{"creates parent dirs", filepath.Join("sub", "deep", "test.txt"), []byte("nested")},
		{"empty data", "empty.txt", []byte{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.rel)
			if err := AtomicWriteFile(path, tc.data, 0644); err != nil {
				t.Fatalf("AtomicWriteFile failed: %v", err)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if string(content) != string(tc.data) {
				t.Errorf("content = %q, want %q", content, tc.data)
			}
		})
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "updated" {
		t.Errorf("Content not updated: got %q", string(content))
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestAtomicWriteFileWithDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newdir", "test.txt")

	if err := AtomicWriteFileWithDir(path, []byte("test"), 0600, 0700); err != nil {
		t.Fatalf("AtomicWriteFileWithDir failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"hello", 5, "hello"},
		{"", 5, ""},
		{"hello world", 0, ""},
		{"abcd", 3, "abc"},
		{"日本語テキスト", 5, "日本..."},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := TruncateRunes(tc.input, tc.maxRunes)
			if result != tc.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q",
					tc.input, tc.maxRunes, result, tc.expected)
			}
		})
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	testCases := []struct {
		input    string
		maxRunes int
		expected string
	}{
		{"hello world", 5, "hello"},
		{"hi", 5, "hi"},
		{"hello world", 0, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := TruncateRunesNoEllipsis(tc.input, tc.maxRunes)
			if result != tc.expected {
				t.Errorf("TruncateRunesNoEllipsis(%q, %d) = %q, want %q",
					tc.input, tc.maxRunes, result, tc.expected)
			}
		})
	}
}

func TestStringWidth(t *testing.T) {
	testCases := []struct {
		input    string
		expected int
	}{
		{"hello", 5},
		{"", 0},
		{"日本語", 6},
		{"hello世界", 9},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := StringWidth(tc.input); got != tc.expected {
				t.Errorf("StringWidth(%q) = %d, want %d", tc.input, got, tc.expected)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	testCases := []struct {
		input    string
		maxWidth int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 0, ""},
		{"hello", 2, "he"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := TruncateWidth(tc.input, tc.maxWidth)
			if got != tc.expected {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.input, tc.maxWidth, got, tc.expected)
			}
			if StringWidth(got) > tc.maxWidth && tc.maxWidth > 0 {
				t.Errorf("TruncateWidth(%q, %d) is %d columns wide", tc.input, tc.maxWidth, StringWidth(got))
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight(ab, 5) = %q, want %q", got, "ab   ")
	}
	if got := PadRight("日本", 6); got != "日本  " {
		t.Errorf("PadRight(日本, 6) = %q, want %q", got, "日本  ")
	}
	if got := PadRight("toolong", 3); got != "toolong" {
		t.Errorf("PadRight(toolong, 3) = %q, want unchanged", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("  a\nb\t\tc  "); got != "a b c" {
		t.Errorf("OneLine() = %q, want %q", got, "a b c")
	}
}
