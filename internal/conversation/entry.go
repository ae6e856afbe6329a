// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a chat entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// DisplayName returns the label used when rendering chat history.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", &RoleError{Role: s}
	}
	return r, nil
}

// UnmarshalText rejects unknown roles when decoding saved conversations.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrInvalidRole is matched by every RoleError.
// Use errors.Is(err, ErrInvalidRole) to check for it.
var ErrInvalidRole = errors.New("invalid role")

// RoleError is returned when an entry is appended with an unknown role.
type RoleError struct {
	Role string
}

// Error implements the error interface.
func (e *RoleError) Error() string {
	return fmt.Sprintf("invalid role %q: must be user, assistant or system", e.Role)
}

// Is implements errors.Is support.
func (e *RoleError) Is(target error) bool {
	return target == ErrInvalidRole
}

// =============================================================================
// ENTRY TYPE
// =============================================================================

// Entry is a single chat turn.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Raw is the trimmed text as the user typed it, before shortcut
	// expansion.
	Raw string `json:"raw"`

	// Expanded is the text after shortcuts were expanded and every tag was
	// resolved.
	Expanded string `json:"expanded"`

	// Refs names the context blocks the entry refers to.
	Refs []string `json:"refs,omitempty"`
}

// Text returns the expanded or raw text of the entry.
func (e *Entry) Text(expanded bool) string {
	if expanded {
		return e.Expanded
	}
	return e.Raw
}

// generateEntryID creates a unique entry ID.
func generateEntryID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
