// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"context"

	"github.com/jeranaias/tagctx/internal/conversation"
)

// =============================================================================
// HANDLER INTERFACES
// =============================================================================

// Handler resolves tags starting with one of its prefixes.
type Handler interface {
	// Name identifies the handler in logs and errors. Unique per registry.
	Name() string

	// Prefixes lists the literal tag prefixes the handler owns, marker
	// included (e.g. "@clipboard"). Must be non-empty.
	Prefixes() []string

	// Expand returns the replacement text for tag. It may add context
	// blocks to conv and flag requirements on req. ErrNotHandled leaves
	// the tag literal; any other error aborts the whole request.
	Expand(ctx context.Context, tag string, conv *conversation.Conversation, req *Request) (string, error)
}

// ConfigHandler is implemented by handlers that accept configuration tags
// from shortcut files, e.g. ["@IndexFiles", "~/notes"].
type ConfigHandler interface {
	Handler
	ConfigPrefixes() []string
	OnConfigTag(tag, value string) error
}

// Autocompleter is implemented by handlers that can suggest completions
// beyond their static prefixes.
type Autocompleter interface {
	Handler

	// Autocomplete returns at most max raw completions for fragment.
	Autocomplete(ctx context.Context, fragment string, max int) []string

	// DisplayString returns the label shown for a raw completion.
	DisplayString(raw string) string
}

// CatchAll is implemented by autocompleters that want every fragment, not
// only those starting with one of their prefixes.
type CatchAll interface {
	MatchAnyAutocomplete() bool
}

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capabilities summarizes what a handler supports.
type Capabilities struct {
	Prefixes       []string
	ConfigPrefixes []string
	Autocomplete   bool
	CatchAll       bool
}

// CapabilitiesOf inspects h for the optional interfaces.
func CapabilitiesOf(h Handler) Capabilities {
	caps := Capabilities{
		Prefixes: append([]string(nil), h.Prefixes()...),
	}
	if ch, ok := h.(ConfigHandler); ok {
		caps.ConfigPrefixes = append([]string(nil), ch.ConfigPrefixes()...)
	}
	if _, ok := h.(Autocompleter); ok {
		caps.Autocomplete = true
		if ca, ok := h.(CatchAll); ok {
			caps.CatchAll = ca.MatchAnyAutocomplete()
		}
	}
	return caps
}

// =============================================================================
// FUNC HANDLER
// =============================================================================

// ExpandFunc is the signature of Handler.Expand.
type ExpandFunc func(ctx context.Context, tag string, conv *conversation.Conversation, req *Request) (string, error)

// Func adapts a function into a Handler.
type Func struct {
	HandlerName string
	Owned       []string
	Fn          ExpandFunc
}

// NewFunc returns a Handler named name that owns prefixes and calls fn.
func NewFunc(name string, fn ExpandFunc, prefixes ...string) *Func {
	return &Func{HandlerName: name, Owned: prefixes, Fn: fn}
}

// Name implements Handler.
func (f *Func) Name() string { return f.HandlerName }

// Prefixes implements Handler.
func (f *Func) Prefixes() []string { return f.Owned }

// Expand implements Handler.
func (f *Func) Expand(ctx context.Context, tag string, conv *conversation.Conversation, req *Request) (string, error) {
	return f.Fn(ctx, tag, conv, req)
}
