// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/tag"
)

// Dispatcher resolves the tags of a request through a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for dispatch events.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher returns a dispatcher reading handlers from reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher reads from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch resolves every tag in req.Working, rightmost first, splicing each
// replacement into place. Tags no handler owns, or whose handler returns
// ErrNotHandled, stay literal.
//
// The first handler error stops the loop and is returned as an *AbortError.
// Splices made before the failure stay in req.Working and blocks added to
// conv are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, conv *conversation.Conversation) error {
	spans := tag.Scan(req.Working)
	if len(spans) == 0 {
		return nil
	}

	for i := len(spans) - 1; i >= 0; i-- {
		span := spans[i]

		h, prefix, ok := d.registry.Resolve(span.Text)
		if !ok {
			d.logger.Debug("tag left literal", zap.String("tag", span.Text))
			continue
		}

		if err := ctx.Err(); err != nil {
			return d.abort(span, h, err)
		}

		replacement, err := d.expand(ctx, h, span.Text, conv, req)
		if errors.Is(err, ErrNotHandled) {
			d.logger.Debug("tag declined", zap.String("tag", span.Text), zap.String("handler", h.Name()))
			continue
		}
		if err != nil {
			return d.abort(span, h, err)
		}

		req.Working = tag.Splice(req.Working, span, replacement)
		d.logger.Debug("tag resolved",
			zap.String("tag", span.Text),
			zap.String("handler", h.Name()),
			zap.String("prefix", prefix),
			zap.Int("replacement_len", len(replacement)))
	}
	return nil
}

// expand calls the handler, converting a panic into an error.
func (d *Dispatcher) expand(ctx context.Context, h Handler, text string, conv *conversation.Conversation, req *Request) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Expand(ctx, text, conv, req)
}

func (d *Dispatcher) abort(span tag.Span, h Handler, err error) error {
	d.logger.Warn("request aborted",
		zap.String("tag", span.Text),
		zap.String("handler", h.Name()),
		zap.Error(err))
	return &AbortError{
		Tag:     span.Text,
		Handler: h.Name(),
		Start:   span.Start,
		End:     span.End,
		Err:     err,
	}
}
