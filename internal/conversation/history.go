// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
)

// ErrUnknownConversation is returned by Switch for an ID that was never added.
var ErrUnknownConversation = errors.New("unknown conversation")

// History keeps every conversation of a session and tracks the current one.
type History struct {
	convs   []*Conversation
	current int
}

// NewHistory returns a history holding one fresh conversation.
func NewHistory() *History {
	h := &History{}
	h.AddConversation()
	return h
}

// AddConversation starts a new conversation and makes it current.
func (h *History) AddConversation() *Conversation {
	c := New()
	h.convs = append(h.convs, c)
	h.current = len(h.convs) - 1
	return c
}

// Restore adds a previously saved conversation and makes it current. A
// conversation with the same ID is replaced.
func (h *History) Restore(c *Conversation) {
	if c == nil {
		return
	}
	for i, existing := range h.convs {
		if existing.ID == c.ID {
			h.convs[i] = c
			h.current = i
			return
		}
	}
	h.convs = append(h.convs, c)
	h.current = len(h.convs) - 1
}

// Current returns the active conversation.
func (h *History) Current() *Conversation {
	return h.convs[h.current]
}

// Switch makes the conversation with the given ID current.
func (h *History) Switch(id string) error {
	for i, c := range h.convs {
		if c.ID == id {
			h.current = i
			return nil
		}
	}
	return fmt.Errorf("switch to %s: %w", id, ErrUnknownConversation)
}

// All returns the conversations in creation order.
func (h *History) All() []*Conversation {
	out := make([]*Conversation, len(h.convs))
	copy(out, h.convs)
	return out
}

// Len returns the number of conversations.
func (h *History) Len() int {
	return len(h.convs)
}
