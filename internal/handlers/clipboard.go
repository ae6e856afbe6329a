// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
)

// ClipboardReader reads the system clipboard.
type ClipboardReader interface {
	ReadAll() (string, error)
}

// SystemClipboard reads the clipboard through the platform helpers
// (pbpaste, xclip, xsel, wl-paste or the Windows API).
type SystemClipboard struct{}

// ReadAll implements ClipboardReader.
func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", ErrClipboardUnavailable
	}
	return clipboard.ReadAll()
}

// WriteAll replaces the clipboard contents.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}

// Clipboard resolves @clipboard.
type Clipboard struct {
	reader ClipboardReader
}

// NewClipboard returns a clipboard handler. A nil reader uses the system
// clipboard.
func NewClipboard(reader ClipboardReader) *Clipboard {
	if reader == nil {
		reader = SystemClipboard{}
	}
	return &Clipboard{reader: reader}
}

// Name implements plugin.Handler.
func (c *Clipboard) Name() string { return "clipboard" }

// Prefixes implements plugin.Handler.
func (c *Clipboard) Prefixes() []string { return []string{"@clipboard"} }

// Expand stores the clipboard text as the "clipboard" block.
func (c *Clipboard) Expand(_ context.Context, _ string, conv *conversation.Conversation, req *plugin.Request) (string, error) {
	text, err := c.reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClipboardUnavailable, err)
	}
	if text == "" {
		return "", ErrClipboardEmpty
	}

	name := conv.AddContext("clipboard", "clipboard", conversation.TypeClipboard, []byte(text), "📋")
	return req.Reference(name), nil
}
