// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"time"

	"github.com/jeranaias/tagctx/internal/conversation"
)

// Connector generates a reply for a prompt.
type Connector interface {
	// Name identifies the provider, e.g. "ollama".
	Name() string

	Generate(ctx context.Context, p Prompt) (Reply, error)
}

// Message is one turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is everything the model sees for one submission.
type Prompt struct {
	// System is the standing instruction.
	System string

	// Context holds the fenced context passages of the conversation.
	Context string

	// History is the chat so far, ending with the current user turn.
	History []Message

	// Image is attached to the last user message when set.
	Image []byte

	Speed conversation.Speed
}

// LastUser returns the content of the final user message, or "".
func (p Prompt) LastUser() string {
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Role == string(conversation.RoleUser) {
			return p.History[i].Content
		}
	}
	return ""
}

// Reply is a model response.
type Reply struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Models maps speeds to model names.
type Models struct {
	Normal string
	Fast   string
	Slow   string
}

// For returns the model for speed. Fast and slow fall back to Normal when
// unset.
func (m Models) For(speed conversation.Speed) string {
	switch speed {
	case conversation.SpeedFast:
		if m.Fast != "" {
			return m.Fast
		}
	case conversation.SpeedSlow:
		if m.Slow != "" {
			return m.Slow
		}
	}
	return m.Normal
}
