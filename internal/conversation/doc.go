// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation contains the chat state that tag handlers write into.
//
// A Conversation holds two things:
//
//   - Entries: the append-only list of chat turns (user, assistant, system).
//     Each entry keeps both the text the user typed and the text after tag
//     expansion.
//   - Blocks: injected resources such as clipboard text, file contents,
//     fetched pages or screenshots. Blocks are keyed by their source, so
//     referencing the same file twice yields one block, and their names are
//     unique so they can be referenced from the prompt.
//
// # Usage
//
//	conv := conversation.New()
//	name := conv.AddContext("notes.md", "/home/me/notes.md", conversation.TypePath, data, "📁")
//	prompt := "Summarize " + conversation.Reference(name)
//
// A Conversation is not safe for concurrent mutation; callers serialize
// requests per conversation.
package conversation
