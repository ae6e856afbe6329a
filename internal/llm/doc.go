// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm sends assembled prompts to a language model.
//
// A Connector turns a Prompt (system text, context passages, chat history
// and an optional image) into a Reply. Two connectors are provided:
//
//   - Ollama talks to a local Ollama server over its /api/chat endpoint.
//   - Fake records prompts and returns a canned reply; used in tests and
//     by the --fake flag.
//
// The model is picked per request from Models according to the
// conversation's speed.
//
// Errors from the Ollama connector are *ClientError values that match the
// sentinels with errors.Is:
//
//	reply, err := conn.Generate(ctx, prompt)
//	if errors.Is(err, llm.ErrNotRunning) {
//	    // start ollama
//	}
package llm
