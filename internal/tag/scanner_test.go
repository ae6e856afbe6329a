// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tag

import (
	"reflect"
	"testing"
)

// =============================================================================
// SCAN TESTS
// =============================================================================

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Span
	}{
		{
			name:  "no marker",
			input: "just some text",
			want:  nil,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "single bare tag",
			input: "Summarize @clipboard please",
			want:  []Span{{Start: 10, End: 20, Text: "@clipboard"}},
		},
		{
			name:  "quoted, bare and escaped tags",
			input: `@a @"b c" @d\ e`,
			want: []Span{
				{Start: 0, End: 2, Text: "@a"},
				{Start: 3, End: 9, Text: "@b c"},
				{Start: 10, End: 15, Text: "@d e"},
			},
		},
		{
			name:  "unterminated quote ends at newline",
			input: "see @\"my file\nnext line",
			want:  []Span{{Start: 4, End: 13, Text: "@my file"}},
		},
		{
			name:  "unterminated quote ends at end of input",
			input: `look @"open ended`,
			want:  []Span{{Start: 5, End: 17, Text: "@open ended"}},
		},
		{
			name:  "backslash inside quotes does not escape the quote",
			input: `@"a\" b"`,
			want:  []Span{{Start: 0, End: 5, Text: `@a\`}},
		},
		{
			name:  "empty quoted tag still yields a span",
			input: `x @"" y`,
			want:  []Span{{Start: 2, End: 5, Text: "@"}},
		},
		{
			name:  "bare marker is not a tag",
			input: "mail me @ home",
			want:  nil,
		},
		{
			name:  "marker at end of input",
			input: "trailing @",
			want:  nil,
		},
		{
			name:  "marker mid word",
			input: "user@example.com",
			want:  []Span{{Start: 4, End: 16, Text: "@example.com"}},
		},
		{
			name:  "double marker is one tag",
			input: "@@fix this",
			want:  []Span{{Start: 0, End: 5, Text: "@@fix"}},
		},
		{
			name:  "tab terminates tag",
			input: "@one\t@two",
			want: []Span{
				{Start: 0, End: 4, Text: "@one"},
				{Start: 5, End: 9, Text: "@two"},
			},
		},
		{
			name:  "escaped tab is kept",
			input: "@a\\\tb",
			want:  []Span{{Start: 0, End: 5, Text: "@a\tb"}},
		},
		{
			name:  "backslash not before whitespace is literal",
			input: `@c:\dir`,
			want:  []Span{{Start: 0, End: 7, Text: `@c:\dir`}},
		},
		{
			name:  "trailing backslash is literal",
			input: `@x\`,
			want:  []Span{{Start: 0, End: 3, Text: `@x\`}},
		},
		{
			name:  "multibyte body",
			input: "@über done",
			want:  []Span{{Start: 0, End: 6, Text: "@über"}},
		},
		{
			name:  "quote inside bare tag is literal",
			input: `@a"b c`,
			want:  []Span{{Start: 0, End: 4, Text: `@a"b`}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Scan(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Scan(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestScan_SpansAreOrderedAndDisjoint(t *testing.T) {
	inputs := []string{
		`@a @"b c" @d\ e`,
		"@x@y @z",
		"a@b@c \"@d\" @\"e\nf\" @",
		`@"unterminated @inner tag`,
	}

	for _, input := range inputs {
		spans := Scan(input)
		for i, s := range spans {
			if s.Start < 0 || s.End > len(input) || s.Start >= s.End {
				t.Errorf("Scan(%q)[%d] has invalid range [%d,%d)", input, i, s.Start, s.End)
			}
			if input[s.Start] != Marker {
				t.Errorf("Scan(%q)[%d] does not start at a marker", input, i)
			}
			if i > 0 && spans[i-1].End > s.Start {
				t.Errorf("Scan(%q) spans %d and %d overlap", input, i-1, i)
			}
		}
	}
}

func TestScan_ResumesAfterSpanEnd(t *testing.T) {
	// The quoted tag swallows the inner marker, so only one span exists.
	spans := Scan(`@"a @b" c`)
	if len(spans) != 1 {
		t.Fatalf("Scan() returned %d spans, want 1", len(spans))
	}
	if spans[0].Text != "@a @b" {
		t.Errorf("Text = %q, want %q", spans[0].Text, "@a @b")
	}
}

func TestScan_LoneMarkerIsNotATag(t *testing.T) {
	if got := Scan("lonely @ marker"); len(got) != 0 {
		t.Errorf("Scan(lonely marker) = %v, want none", got)
	}
}

// =============================================================================
// EDITING HELPER TESTS
// =============================================================================

func TestSplice_RightToLeft(t *testing.T) {
	text := `@a @"b c" @d\ e`
	spans := Scan(text)

	for i := len(spans) - 1; i >= 0; i-- {
		text = Splice(text, spans[i], "<"+spans[i].Text[1:]+">")
	}

	want := "<a> <b c> <d e>"
	if text != want {
		t.Errorf("after splicing = %q, want %q", text, want)
	}
}

func TestSplice_InvalidSpanIsNoop(t *testing.T) {
	text := "short"
	got := Splice(text, Span{Start: 3, End: 99}, "x")
	if got != text {
		t.Errorf("Splice() = %q, want %q", got, text)
	}
}

func TestFragmentAt(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		caret     int
		wantFrag  string
		wantStart int
		wantOK    bool
	}{
		{"bare fragment", "read @clip", 10, "@clip", 5, true},
		{"lone marker", "read @", 6, "@", 5, true},
		{"quoted path keeps quote", `open @"/Users/me`, 16, `@"/Users/me`, 5, true},
		{"caret after whitespace", "read @clip ", 11, "", 0, false},
		{"no marker", "hello", 5, "", 0, false},
		{"caret in middle", "@clipboard rest", 5, "@clip", 0, true},
		{"caret past end is clamped", "@ab", 99, "@ab", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frag, start, ok := FragmentAt(tc.line, tc.caret)
			if frag != tc.wantFrag || start != tc.wantStart || ok != tc.wantOK {
				t.Errorf("FragmentAt(%q, %d) = (%q, %d, %v), want (%q, %d, %v)",
					tc.line, tc.caret, frag, start, ok, tc.wantFrag, tc.wantStart, tc.wantOK)
			}
		})
	}
}
