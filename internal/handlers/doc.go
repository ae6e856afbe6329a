// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package handlers contains the built-in tag handlers.
//
// # Handlers
//
//   - Clipboard: @clipboard pastes the clipboard text as a context block
//   - File: @/path, @~/path and their quoted forms embed a text file;
//     @IndexFiles in a shortcut file adds a directory to the file index
//   - URL: @http://... and @https://... embed the readable text of a page
//   - Image: @selection and @window capture a screenshot for the model
//   - Speed: @fast, @slow and @think pick the reply speed
//
// Builtin returns all of them in registration order, wired to the given
// dependencies.
package handlers
