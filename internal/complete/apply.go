// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package complete

import "github.com/jeranaias/tagctx/internal/tag"

// Apply replaces the tag fragment ending at caret with raw and returns the
// new line and caret. Without a fragment, raw is inserted at the caret.
func Apply(line string, caret int, raw string) (string, int) {
	if caret < 0 || caret > len(line) {
		caret = len(line)
	}
	start := caret
	if _, s, ok := tag.FragmentAt(line, caret); ok {
		start = s
	}
	return line[:start] + raw + line[caret:], start + len(raw)
}
