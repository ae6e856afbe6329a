// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations, context blocks included.
//
// Each conversation is one JSON file named after its ID, written
// atomically. Image payloads are stored base64 encoded by encoding/json.
//
// # Usage
//
//	store, err := storage.NewConversationStoreWithDir(dir)
//	err = store.Save(conv, "llama3.2")
//
//	metas, err := store.List()          // most recent first
//	stored, err := store.Load(metas[0].ID)
//	conv := stored.Conversation
//
// # Storage Location
//
// Conversations are stored in ~/.tagctx/conversations/ by default.
package storage
