// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds handlers in registration order. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	byName   map[string]Handler
	version  uint64
}

// Option configures a Registry.
type Option func(*Registry) error

// WithHandlers registers hs in order.
func WithHandlers(hs ...Handler) Option {
	return func(r *Registry) error {
		for _, h := range hs {
			if err := r.Register(h); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewRegistry creates a registry and applies opts in order.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{byName: make(map[string]Handler)}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends h.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	name := h.Name()
	if name == "" {
		return ErrEmptyName
	}
	prefixes := h.Prefixes()
	if len(prefixes) == 0 {
		return fmt.Errorf("register %s: %w", name, ErrNoPrefixes)
	}
	for _, p := range prefixes {
		if p == "" {
			return fmt.Errorf("register %s: %w", name, ErrEmptyPrefix)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("register %s: %w", name, ErrDuplicateHandler)
	}
	r.handlers = append(r.handlers, h)
	r.byName[name] = h
	r.version++
	return nil
}

// Get returns the handler called name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Handlers returns the handlers in registration order.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Version increases with every registration.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Prefixes returns every static prefix in declaration order, without
// duplicates.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, h := range r.handlers {
		for _, p := range h.Prefixes() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns the handler owning tag and the prefix that matched. The
// longest matching prefix wins; the first registered handler wins a tie.
func (r *Registry) Resolve(tag string) (Handler, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best       Handler
		bestPrefix string
	)
	for _, h := range r.handlers {
		for _, p := range h.Prefixes() {
			if len(p) > len(bestPrefix) && strings.HasPrefix(tag, p) {
				best, bestPrefix = h, p
			}
		}
	}
	return best, bestPrefix, best != nil
}

// ResolveConfig returns the config handler whose configuration prefix
// matches trigger, using the same longest-prefix rule as Resolve.
func (r *Registry) ResolveConfig(trigger string) (ConfigHandler, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best       ConfigHandler
		bestPrefix string
	)
	for _, h := range r.handlers {
		ch, ok := h.(ConfigHandler)
		if !ok {
			continue
		}
		for _, p := range ch.ConfigPrefixes() {
			if p != "" && len(p) > len(bestPrefix) && strings.HasPrefix(trigger, p) {
				best, bestPrefix = ch, p
			}
		}
	}
	return best, bestPrefix, best != nil
}
