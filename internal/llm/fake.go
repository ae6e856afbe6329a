// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"sync"
)

// FakeReply is what Fake answers when Reply is empty.
const FakeReply = "MOCK_RESPONSE"

// Fake is a Connector that records prompts and answers with a fixed reply.
type Fake struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []Prompt
}

// Name implements Connector.
func (f *Fake) Name() string { return "fake" }

// Generate implements Connector.
func (f *Fake) Generate(ctx context.Context, p Prompt) (Reply, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if f.Err != nil {
		return Reply{}, f.Err
	}
	text := f.Reply
	if text == "" {
		text = FakeReply
	}
	return Reply{Text: text, Model: "fake-" + string(p.Speed)}, nil
}

// Prompts returns every prompt received so far.
func (f *Fake) Prompts() []Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Prompt, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// Last returns the most recent prompt.
func (f *Fake) Last() (Prompt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return Prompt{}, false
	}
	return f.prompts[len(f.prompts)-1], true
}
