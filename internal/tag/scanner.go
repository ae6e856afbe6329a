// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// Marker is the character that starts every tag.
	Marker = '@'

	// Quote opens and closes a quoted tag body.
	Quote = '"'

	// escape followed by whitespace keeps the whitespace inside the tag.
	escape = '\\'
)

// =============================================================================
// SPAN
// =============================================================================

// Span is a tag recognized in a piece of text.
type Span struct {
	// Start and End delimit the half-open byte range [Start, End) that the
	// tag occupies in the scanned text, quotes and escapes included.
	Start int
	End   int

	// Text is the tag as handlers see it: marker kept, quotes stripped,
	// escapes consumed.
	Text string
}

// Len returns the number of source bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// =============================================================================
// SCANNER
// =============================================================================

// Scan returns the tags in text, ordered by Start. Spans never overlap.
func Scan(text string) []Span {
	var spans []Span
	n := len(text)
	i := 0

	for i < n {
		at := strings.IndexByte(text[i:], Marker)
		if at < 0 {
			break
		}
		start := i + at
		i = start + 1

		if i < n && text[i] == Quote {
			span, next := scanQuoted(text, start)
			spans = append(spans, span)
			i = next
			continue
		}

		body, next := scanBare(text, i)
		i = next
		if body == "" {
			continue
		}
		spans = append(spans, Span{
			Start: start,
			End:   next,
			Text:  string(Marker) + body,
		})
	}

	return spans
}

// scanQuoted reads a tag of the form @"...". start is the marker offset.
// The body ends at the first quote or at a newline; a backslash inside quotes
// is an ordinary character. An unterminated body still yields a span ending
// where the body stopped.
func scanQuoted(text string, start int) (Span, int) {
	n := len(text)
	i := start + 2
	bodyStart := i
	for i < n && text[i] != Quote && text[i] != '\n' {
		i++
	}
	body := text[bodyStart:i]
	if i < n && text[i] == Quote {
		i++
	}
	return Span{Start: start, End: i, Text: string(Marker) + body}, i
}

// scanBare reads an unquoted tag body starting at i (just past the marker).
// It returns the decoded body and the offset of the first byte not consumed.
func scanBare(text string, i int) (string, int) {
	var body strings.Builder
	n := len(text)

	for i < n {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == escape && i+1 < n {
			next, nextSize := utf8.DecodeRuneInString(text[i+1:])
			if unicode.IsSpace(next) {
				body.WriteRune(next)
				i += 1 + nextSize
				continue
			}
		}
		if unicode.IsSpace(r) {
			break
		}
		body.WriteString(text[i : i+size])
		i += size
	}

	return body.String(), i
}

// =============================================================================
// EDITING HELPERS
// =============================================================================

// Splice replaces the bytes covered by s with replacement.
// Callers splicing several spans must go from the rightmost span to the
// leftmost so that earlier offsets stay valid.
func Splice(text string, s Span, replacement string) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text) - s.Len() + len(replacement))
	sb.WriteString(text[:s.Start])
	sb.WriteString(replacement)
	sb.WriteString(text[s.End:])
	return sb.String()
}

// FragmentAt returns the partially typed tag that ends at caret, as raw
// source text (quotes and escapes preserved), together with its start
// offset. ok is false when the caret is not at the end of a tag.
func FragmentAt(line string, caret int) (fragment string, start int, ok bool) {
	if caret < 0 || caret > len(line) {
		caret = len(line)
	}
	head := line[:caret]

	spans := Scan(head)
	if len(spans) > 0 {
		last := spans[len(spans)-1]
		if last.End == caret {
			return head[last.Start:caret], last.Start, true
		}
	}

	// A lone marker is not a tag but is still worth completing.
	if strings.HasSuffix(head, string(Marker)) {
		return string(Marker), caret - 1, true
	}

	return "", 0, false
}
