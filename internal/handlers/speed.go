// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
)

// speedTags maps each exact tag to the speed it selects.
var speedTags = map[string]conversation.Speed{
	"@fast":  conversation.SpeedFast,
	"@slow":  conversation.SpeedSlow,
	"@think": conversation.SpeedSlow,
}

// Speed resolves @fast, @slow and @think.
type Speed struct{}

// NewSpeed returns the speed handler.
func NewSpeed() *Speed { return &Speed{} }

// Name implements plugin.Handler.
func (s *Speed) Name() string { return "speed" }

// Prefixes implements plugin.Handler.
func (s *Speed) Prefixes() []string { return []string{"@fast", "@slow", "@think"} }

// Expand sets the conversation speed and removes the tag. Longer words
// sharing a prefix, like @faster, are declined with plugin.ErrNotHandled.
func (s *Speed) Expand(_ context.Context, tag string, conv *conversation.Conversation, _ *plugin.Request) (string, error) {
	speed, ok := speedTags[tag]
	if !ok {
		return "", plugin.ErrNotHandled
	}
	conv.SetSpeed(speed)
	return "", nil
}
