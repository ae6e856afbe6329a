// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the tagctx packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadRight, StringWidth: terminal column aware helpers
//   - OneLine: collapse whitespace for previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.OneLine(util.TruncateRunes(text, 60))
//	err := util.AtomicWriteFile(path, data, 0600)
package util
