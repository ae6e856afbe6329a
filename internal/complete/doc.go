// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package complete suggests tag completions for a partially typed fragment.
//
// Suggestions come from two places. Static prefixes declared by every
// registered handler are matched first, case-insensitively and in
// declaration order. Handlers implementing plugin.Autocompleter are then
// asked for dynamic candidates (file paths, indexed names). The merged list
// never repeats a raw value and never exceeds the requested maximum.
//
// State keeps the caller-side selection as the user cycles through
// suggestions, and Apply writes the accepted suggestion back into the line.
package complete
