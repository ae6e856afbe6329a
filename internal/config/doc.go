// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves the tagctx configuration.
//
// Configuration file locations (in order of precedence):
//   - ~/.tagctx/config.toml
//   - ~/.tagctx/config.json
//   - Built-in defaults
//
// Environment variables (TAGCTX_*) override file values. Durations are
// written as strings such as "15s" in both formats.
//
// # Example
//
//	[llm]
//	provider = "ollama"
//	model = "llama3.2"
//	fast_model = "llama3.2:1b"
//
//	[shortcuts]
//	dirs = ["~/.tagctx/shortcuts"]
//
//	[files]
//	max_context_bytes = 10240
//	watch = true
package config
