// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package macro provides plain trigger→replacement substitution that runs on
// user input before any tag is resolved.
//
// Substitution is literal and sequential: shortcuts are applied one after
// another in the order they were added, so a later shortcut also sees text
// introduced by an earlier one.
package macro

import (
	"strings"
	"sync"
)

// Shortcut is a single trigger→replacement pair.
type Shortcut struct {
	Trigger     string `toml:"trigger" json:"trigger"`
	Replacement string `toml:"replacement" json:"replacement"`
}

// Expander holds an ordered list of shortcuts.
type Expander struct {
	mu        sync.RWMutex
	shortcuts []Shortcut
}

// NewExpander creates an expander preloaded with shortcuts.
func NewExpander(shortcuts ...Shortcut) *Expander {
	e := &Expander{}
	for _, s := range shortcuts {
		e.Add(s.Trigger, s.Replacement)
	}
	return e
}

// Add appends a shortcut. Empty triggers are ignored since they would match
// between every pair of characters.
func (e *Expander) Add(trigger, replacement string) {
	if trigger == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shortcuts = append(e.shortcuts, Shortcut{Trigger: trigger, Replacement: replacement})
}

// ExpandAll applies every shortcut to text in registration order.
func (e *Expander) ExpandAll(text string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, s := range e.shortcuts {
		text = strings.ReplaceAll(text, s.Trigger, s.Replacement)
	}
	return text
}

// Len returns the number of shortcuts.
func (e *Expander) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.shortcuts)
}

// Shortcuts returns a copy of the shortcuts in registration order.
func (e *Expander) Shortcuts() []Shortcut {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Shortcut, len(e.shortcuts))
	copy(out, e.shortcuts)
	return out
}

// Triggers returns the triggers in registration order.
func (e *Expander) Triggers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.shortcuts))
	for _, s := range e.shortcuts {
		out = append(out, s.Trigger)
	}
	return out
}

// Reset removes all shortcuts.
func (e *Expander) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shortcuts = nil
}
