// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/tagctx/internal/util"
)

// Greeting is the synthetic assistant entry that opens every conversation.
const Greeting = "How can I help you?"

// DefaultContextName is used when a handler suggests an empty block name.
const DefaultContextName = "context"

// =============================================================================
// SPEED
// =============================================================================

// Speed selects how much effort the model should spend on replies.
type Speed string

const (
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
	SpeedSlow   Speed = "slow"
)

// ParseSpeed converts s into a Speed. The empty string maps to SpeedNormal.
func ParseSpeed(s string) (Speed, error) {
	switch Speed(strings.ToLower(strings.TrimSpace(s))) {
	case "", SpeedNormal:
		return SpeedNormal, nil
	case SpeedFast:
		return SpeedFast, nil
	case SpeedSlow:
		return SpeedSlow, nil
	}
	return "", fmt.Errorf("unknown speed %q: must be normal, fast or slow", s)
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds chat entries and the context blocks injected by tags.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Entries []*Entry `json:"entries"`
	Blocks  []*Block `json:"blocks"`

	Speed Speed `json:"speed"`
}

// New creates a conversation seeded with the greeting.
func New() *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Reset()
	c.UpdatedAt = now
	return c
}

// Reset clears entries and blocks, restores the default speed and re-seeds
// the greeting. The ID is kept.
func (c *Conversation) Reset() {
	c.Entries = []*Entry{{
		ID:        generateEntryID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Raw:       Greeting,
		Expanded:  Greeting,
	}}
	c.Blocks = make([]*Block, 0)
	c.Speed = SpeedNormal
	c.UpdatedAt = time.Now()
}

// =============================================================================
// CONTEXT BLOCKS
// =============================================================================

// AddContext stores payload under a unique name and returns that name.
//
// If a block with the same source already exists its name is returned and
// nothing changes. Otherwise suggested is used as is, or with a -1, -2, ...
// suffix when another block already holds it.
func (c *Conversation) AddContext(suggested, source string, typ BlockType, payload []byte, icon string) string {
	if existing := c.BlockBySource(source); existing != nil {
		return existing.Name
	}

	if suggested == "" {
		suggested = DefaultContextName
	}
	name := suggested
	for i := 1; c.Block(name) != nil; i++ {
		name = fmt.Sprintf("%s-%d", suggested, i)
	}

	c.Blocks = append(c.Blocks, &Block{
		Name:    name,
		Source:  source,
		Type:    typ,
		Payload: payload,
		Icon:    icon,
		AddedAt: time.Now(),
	})
	c.UpdatedAt = time.Now()
	return name
}

// Block returns the block called name, or nil.
func (c *Conversation) Block(name string) *Block {
	for _, b := range c.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// BlockBySource returns the block loaded from source, or nil.
func (c *Conversation) BlockBySource(source string) *Block {
	for _, b := range c.Blocks {
		if b.Source == source {
			return b
		}
	}
	return nil
}

// LastImage returns the payload of the most recently added image block.
func (c *Conversation) LastImage() ([]byte, bool) {
	for i := len(c.Blocks) - 1; i >= 0; i-- {
		if c.Blocks[i].Type == TypeImage {
			return c.Blocks[i].Payload, true
		}
	}
	return nil, false
}

// ContextHistoryText renders every text block as a fenced passage, in the
// order the blocks were added.
func (c *Conversation) ContextHistoryText() string {
	var sb strings.Builder
	for _, b := range c.Blocks {
		if !b.Type.IsText() {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		ref := Reference(b.Name)
		fmt.Fprintf(&sb, "--- BEGIN %s (%s: %s) ---\n", ref, b.Type, b.Source)
		sb.Write(b.Payload)
		if len(b.Payload) > 0 && b.Payload[len(b.Payload)-1] != '\n' {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "--- END %s ---", ref)
	}
	return sb.String()
}

// =============================================================================
// CHAT ENTRIES
// =============================================================================

// AddChatEntry appends a chat turn. Unknown roles are rejected with a
// *RoleError.
func (c *Conversation) AddChatEntry(role Role, raw, expanded string, refs []string) (*Entry, error) {
	if !role.Valid() {
		return nil, &RoleError{Role: string(role)}
	}
	e := &Entry{
		ID:        generateEntryID(),
		Role:      role,
		Timestamp: time.Now(),
		Raw:       raw,
		Expanded:  expanded,
	}
	if len(refs) > 0 {
		e.Refs = append([]string(nil), refs...)
	}
	c.Entries = append(c.Entries, e)
	c.UpdatedAt = e.Timestamp
	return e, nil
}

// ChatHistory renders entries as "<Role>: <text>" paragraphs.
func (c *Conversation) ChatHistory(expanded bool) string {
	parts := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		parts = append(parts, e.Role.DisplayName()+": "+e.Text(expanded))
	}
	return strings.Join(parts, "\n\n")
}

// ChatHistoryExpanded renders entries with tags resolved.
func (c *Conversation) ChatHistoryExpanded() string {
	return c.ChatHistory(true)
}

// ChatHistoryRaw renders entries as the user typed them.
func (c *Conversation) ChatHistoryRaw() string {
	return c.ChatHistory(false)
}

// LastEntry returns the most recent entry, or nil.
func (c *Conversation) LastEntry() *Entry {
	if len(c.Entries) == 0 {
		return nil
	}
	return c.Entries[len(c.Entries)-1]
}

// =============================================================================
// METADATA
// =============================================================================

// SetSpeed changes the sticky reply speed.
func (c *Conversation) SetSpeed(s Speed) {
	c.Speed = s
	c.UpdatedAt = time.Now()
}

// Title returns the first user entry, shortened, or "New Conversation".
func (c *Conversation) Title() string {
	for _, e := range c.Entries {
		if e.Role == RoleUser {
			return util.TruncateRunes(util.OneLine(e.Raw), 50)
		}
	}
	return "New Conversation"
}

// IsEmpty reports whether the conversation holds nothing but the greeting.
func (c *Conversation) IsEmpty() bool {
	return len(c.Blocks) == 0 && len(c.Entries) <= 1
}
