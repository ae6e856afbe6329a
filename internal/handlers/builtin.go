// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/plugin"
)

// Deps carries what the built-in handlers need.
type Deps struct {
	Clipboard ClipboardReader
	Capturer  Capturer
	File      FileOptions
	URL       URLOptions
	Logger    *zap.Logger
}

// Builtin returns the built-in handlers in registration order.
func Builtin(deps Deps) []plugin.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.File.Logger == nil {
		deps.File.Logger = logger.Named("file")
	}
	if deps.URL.Logger == nil {
		deps.URL.Logger = logger.Named("url")
	}

	return []plugin.Handler{
		NewClipboard(deps.Clipboard),
		NewFile(deps.File),
		NewURL(deps.URL),
		NewImage(deps.Capturer, logger.Named("image")),
		NewSpeed(),
	}
}
