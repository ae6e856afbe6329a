// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
)

// =============================================================================
// CLIPBOARD TESTS
// =============================================================================

type fakeClipboard struct {
	text string
	err  error
}

func (f fakeClipboard) ReadAll() (string, error) { return f.text, f.err }

func TestClipboard_Expand(t *testing.T) {
	h := NewClipboard(fakeClipboard{text: "TEST"})
	conv := conversation.New()
	req := plugin.NewRequest("@clipboard")

	out, err := h.Expand(context.Background(), "@clipboard", conv, req)
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:clipboard", out)
	assert.Equal(t, []string{"clipboard"}, req.Refs)

	b := conv.Block("clipboard")
	require.NotNil(t, b)
	assert.Equal(t, conversation.TypeClipboard, b.Type)
	assert.Equal(t, "TEST", b.Text())
	assert.Equal(t, "📋", b.Icon)

	// Same source again reuses the block even if the clipboard changed.
	h = NewClipboard(fakeClipboard{text: "OTHER"})
	out, err = h.Expand(context.Background(), "@clipboard", conv, req)
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE:clipboard", out)
	assert.Len(t, conv.Blocks, 1)
}

func TestClipboard_Errors(t *testing.T) {
	tests := []struct {
		name string
		cb   fakeClipboard
		want error
	}{
		{"empty", fakeClipboard{}, ErrClipboardEmpty},
		{"read failure", fakeClipboard{err: errors.New("no xclip")}, ErrClipboardUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv := conversation.New()
			_, err := NewClipboard(tc.cb).Expand(context.Background(), "@clipboard", conv, plugin.NewRequest(""))
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, conv.Blocks)
		})
	}
}

// =============================================================================
// SPEED TESTS
// =============================================================================

func TestSpeed_Expand(t *testing.T) {
	tests := []struct {
		tag       string
		wantOut   string
		wantSpeed conversation.Speed
	}{
		{"@fast", "", conversation.SpeedFast},
		{"@slow", "", conversation.SpeedSlow},
		{"@think", "", conversation.SpeedSlow},
	}
	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			conv := conversation.New()
			out, err := NewSpeed().Expand(context.Background(), tc.tag, conv, plugin.NewRequest(tc.tag))
			require.NoError(t, err)
			assert.Equal(t, tc.wantOut, out)
			assert.Equal(t, tc.wantSpeed, conv.Speed)
		})
	}
}

// dispatch runs text through d and reports the working text and whether
// every tag resolved.
func dispatch(ctx context.Context, d *plugin.Dispatcher, text string, conv *conversation.Conversation) (string, bool) {
	req := plugin.NewRequest(text)
	err := d.Dispatch(ctx, req, conv)
	return req.Working, err == nil
}

func TestSpeed_Expand_DeclinesLongerWords(t *testing.T) {
	conv := conversation.New()
	out, err := NewSpeed().Expand(context.Background(), "@faster", conv, plugin.NewRequest("@faster"))
	assert.ErrorIs(t, err, plugin.ErrNotHandled)
	assert.Empty(t, out)
	assert.Equal(t, conversation.SpeedNormal, conv.Speed)
}

func TestDispatch_DeclinedTagsKeepTypedForm(t *testing.T) {
	capt := &fakeCapturer{data: []byte("png")}
	reg, err := plugin.NewRegistry(plugin.WithHandlers(NewSpeed(), NewImage(capt, nil)))
	require.NoError(t, err)
	d := plugin.NewDispatcher(reg)

	tests := []string{
		`see @"fastlane notes" now`,
		`go @fast\ lane now`,
		`open @"windows dir" x`,
		`try @faster and @selectionist`,
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			conv := conversation.New()
			out, ok := dispatch(context.Background(), d, text, conv)
			require.True(t, ok)
			assert.Equal(t, text, out)
			assert.Equal(t, conversation.SpeedNormal, conv.Speed)
			assert.Empty(t, conv.Blocks)
		})
	}
	assert.Empty(t, capt.modes)

	conv := conversation.New()
	out, ok := dispatch(context.Background(), d, `@"fastlane" then @fast`, conv)
	require.True(t, ok)
	assert.Equal(t, `@"fastlane" then `, out)
	assert.Equal(t, conversation.SpeedFast, conv.Speed)
}

func TestSpeed_StickyAcrossDispatches(t *testing.T) {
	reg, err := plugin.NewRegistry(plugin.WithHandlers(NewSpeed()))
	require.NoError(t, err)
	d := plugin.NewDispatcher(reg)
	conv := conversation.New()

	out, ok := dispatch(context.Background(), d, "@fast hello", conv)
	require.True(t, ok)
	assert.Equal(t, " hello", out)

	dispatch(context.Background(), d, "next question", conv)
	assert.Equal(t, conversation.SpeedFast, conv.Speed)
}

// =============================================================================
// BUILTIN TESTS
// =============================================================================

func TestBuiltin_RegistersCleanly(t *testing.T) {
	reg, err := plugin.NewRegistry(plugin.WithHandlers(Builtin(Deps{
		Clipboard: fakeClipboard{text: "x"},
	})...))
	require.NoError(t, err)

	names := make([]string, 0, reg.Len())
	for _, h := range reg.Handlers() {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"clipboard", "file", "url", "image", "speed"}, names)

	h, _, ok := reg.Resolve("@https://example.com")
	require.True(t, ok)
	assert.Equal(t, "url", h.Name())

	h, _, ok = reg.Resolve("@~/notes.md")
	require.True(t, ok)
	assert.Equal(t, "file", h.Name())

	_, _, ok = reg.ResolveConfig(IndexFilesTag)
	assert.True(t, ok)

	caps := plugin.CapabilitiesOf(h)
	assert.True(t, caps.CatchAll)
	assert.True(t, strings.HasPrefix(caps.Prefixes[0], "@"))
}
