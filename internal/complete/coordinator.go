// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package complete

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/tag"
)

// MaxResults is the default cap on suggestions.
const MaxResults = 10

// Suggestion is one completion candidate.
type Suggestion struct {
	// Raw is inserted into the line when accepted.
	Raw string

	// Display is shown in the suggestion list.
	Display string
}

// Coordinator queries a registry for suggestions.
type Coordinator struct {
	registry *plugin.Registry
	logger   *zap.Logger
	static   func() []string

	mu       sync.Mutex
	version  uint64
	prefixes []string
	loaded   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used to report misbehaving autocompleters.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStatic adds entries offered after the handler prefixes, such as
// shortcut triggers. fn is called on every Suggest.
func WithStatic(fn func() []string) Option {
	return func(c *Coordinator) {
		c.static = fn
	}
}

// NewCoordinator returns a coordinator reading handlers from reg.
func NewCoordinator(reg *plugin.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{registry: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Suggest returns up to max suggestions for fragment, static prefixes and
// WithStatic entries first. A fragment that does not start with the tag marker yields nil.
// max <= 0 means MaxResults.
func (c *Coordinator) Suggest(ctx context.Context, fragment string, max int) []Suggestion {
	if !strings.HasPrefix(fragment, string(tag.Marker)) {
		return nil
	}
	if max <= 0 {
		max = MaxResults
	}
	lower := strings.ToLower(fragment)

	out := make([]Suggestion, 0, max)
	seen := make(map[string]bool)
	add := func(s Suggestion) bool {
		if seen[s.Raw] {
			return true
		}
		seen[s.Raw] = true
		out = append(out, s)
		return len(out) < max
	}

	static := c.staticPrefixes()
	if c.static != nil {
		static = append(append([]string(nil), static...), c.static()...)
	}
	for _, p := range static {
		if !strings.HasPrefix(strings.ToLower(p), lower) {
			continue
		}
		if !add(Suggestion{Raw: p, Display: p}) {
			return out
		}
	}

	for _, h := range c.registry.Handlers() {
		ac, ok := h.(plugin.Autocompleter)
		if !ok || !wants(ac, lower) {
			continue
		}
		for _, raw := range c.query(ctx, ac, fragment, max) {
			if !add(Suggestion{Raw: raw, Display: ac.DisplayString(raw)}) {
				return out
			}
		}
	}
	return out
}

// staticPrefixes returns the cached prefix list, reloading it when the
// registry changed.
func (c *Coordinator) staticPrefixes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := c.registry.Version(); !c.loaded || v != c.version {
		c.prefixes = c.registry.Prefixes()
		c.version = v
		c.loaded = true
	}
	return c.prefixes
}

// query calls the autocompleter, treating a panic as no candidates.
func (c *Coordinator) query(ctx context.Context, ac plugin.Autocompleter, fragment string, max int) (raws []string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("autocomplete panic",
				zap.String("handler", ac.Name()),
				zap.Any("panic", r))
			raws = nil
		}
	}()
	raws = ac.Autocomplete(ctx, fragment, max)
	if len(raws) > max {
		raws = raws[:max]
	}
	return raws
}

// wants reports whether ac should be asked about the lowercased fragment.
func wants(ac plugin.Autocompleter, lower string) bool {
	if ca, ok := ac.(plugin.CatchAll); ok && ca.MatchAnyAutocomplete() {
		return true
	}
	for _, p := range ac.Prefixes() {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
