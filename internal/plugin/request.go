// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import "github.com/jeranaias/tagctx/internal/conversation"

// Request is the transient state of one submission.
type Request struct {
	// Original is the text before any tag was resolved.
	Original string

	// Working starts equal to Original and receives every splice.
	Working string

	// NeedsImage is set by handlers whose output only makes sense with the
	// latest image attached to the prompt.
	NeedsImage bool

	// Refs lists the block names handlers referenced, in resolution order.
	Refs []string
}

// NewRequest returns a request for text.
func NewRequest(text string) *Request {
	return &Request{Original: text, Working: text}
}

// Reference records that the request refers to the block called name and
// returns the in-prompt token for it.
func (r *Request) Reference(name string) string {
	for _, existing := range r.Refs {
		if existing == name {
			return conversation.Reference(name)
		}
	}
	r.Refs = append(r.Refs, name)
	return conversation.Reference(name)
}
