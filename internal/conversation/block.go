// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "time"

// BlockType classifies the payload of a context block.
type BlockType string

const (
	TypeClipboard BlockType = "clipboard"
	TypePath      BlockType = "path"
	TypeURL       BlockType = "url"
	TypeText      BlockType = "text"
	TypeImage     BlockType = "image"
)

// IsText reports whether payloads of this type can be pasted into a prompt.
func (t BlockType) IsText() bool {
	return t != TypeImage
}

// ReferencePrefix starts the token that points at a block from inside a prompt.
const ReferencePrefix = "RESOURCE:"

// Reference returns the in-prompt token for the block called name.
func Reference(name string) string {
	return ReferencePrefix + name
}

// Block is a named piece of injected content.
type Block struct {
	// Name is unique within the conversation.
	Name string `json:"name"`

	// Source is the external identity of the resource, e.g. a file path,
	// "clipboard" or a URL. At most one block exists per source.
	Source string `json:"source"`

	Type    BlockType `json:"type"`
	Payload []byte    `json:"payload"`
	Icon    string    `json:"icon,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Text returns the payload as a string.
func (b *Block) Text() string {
	return string(b.Payload)
}

// Size returns the payload size in bytes.
func (b *Block) Size() int {
	return len(b.Payload)
}

// Label returns the icon and name, as shown in listings.
func (b *Block) Label() string {
	if b.Icon == "" {
		return b.Name
	}
	return b.Icon + " " + b.Name
}
