// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tag finds @tags inside free-form chat text.
//
// A tag starts at the marker character '@' and runs until the next
// unescaped whitespace. A marker immediately followed by a double quote
// starts a quoted tag that runs to the closing quote or the end of the
// line, whichever comes first.
//
// # Examples
//
//	@clipboard            -> "@clipboard"
//	@"~/My Notes/todo.md" -> "@~/My Notes/todo.md"
//	@~/My\ Notes/todo.md  -> "@~/My Notes/todo.md"
//
// The scanner never fails: unterminated quotes produce a best-effort tag
// and a bare marker produces nothing.
package tag
