// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONTEXT BLOCK TESTS
// =============================================================================

func TestConversation_AddContext_SameSourceReturnsSameName(t *testing.T) {
	c := New()

	first := c.AddContext("notes.md", "/tmp/notes.md", TypePath, []byte("a"), "📁")
	second := c.AddContext("other", "/tmp/notes.md", TypePath, []byte("b"), "📁")

	if first != second {
		t.Errorf("names differ: %q vs %q", first, second)
	}
	if len(c.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(c.Blocks))
	}
	if got := c.Blocks[0].Text(); got != "a" {
		t.Errorf("payload = %q, want original %q", got, "a")
	}
}

func TestConversation_AddContext_NameCollisions(t *testing.T) {
	c := New()

	names := []string{
		c.AddContext("url", "https://a.example", TypeURL, nil, ""),
		c.AddContext("url", "https://b.example", TypeURL, nil, ""),
		c.AddContext("url", "https://c.example", TypeURL, nil, ""),
	}
	want := []string{"url", "url-1", "url-2"}

	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestConversation_AddContext_SuffixSkipsTakenNames(t *testing.T) {
	c := New()
	c.AddContext("x-1", "s1", TypeText, nil, "")
	c.AddContext("x", "s2", TypeText, nil, "")

	if got := c.AddContext("x", "s3", TypeText, nil, ""); got != "x-2" {
		t.Errorf("AddContext() = %q, want x-2", got)
	}
}

func TestConversation_AddContext_EmptyName(t *testing.T) {
	c := New()
	if got := c.AddContext("", "src", TypeText, nil, ""); got != DefaultContextName {
		t.Errorf("AddContext() = %q, want %q", got, DefaultContextName)
	}
}

func TestConversation_BlockLookups(t *testing.T) {
	c := New()
	c.AddContext("clipboard", "clipboard", TypeClipboard, []byte("TEST"), "📋")

	b := c.Block("clipboard")
	require.NotNil(t, b)
	assert.Equal(t, "TEST", b.Text())
	assert.Equal(t, 4, b.Size())
	assert.Equal(t, "📋 clipboard", b.Label())
	assert.Same(t, b, c.BlockBySource("clipboard"))
	assert.Nil(t, c.Block("missing"))
	assert.Nil(t, c.BlockBySource("missing"))
}

func TestConversation_LastImage(t *testing.T) {
	c := New()
	if _, ok := c.LastImage(); ok {
		t.Fatal("LastImage() ok on empty conversation")
	}

	c.AddContext("Screenshot", "screenshot:1", TypeImage, []byte("one"), "📷")
	c.AddContext("notes", "/n", TypePath, []byte("text"), "📁")
	c.AddContext("Screenshot", "screenshot:2", TypeImage, []byte("two"), "📷")

	img, ok := c.LastImage()
	if !ok || string(img) != "two" {
		t.Errorf("LastImage() = %q, %v; want two, true", img, ok)
	}
}

func TestConversation_ContextHistoryText(t *testing.T) {
	c := New()
	c.AddContext("clipboard", "clipboard", TypeClipboard, []byte("TEST"), "📋")
	c.AddContext("Screenshot", "screenshot:1", TypeImage, []byte{0x89, 'P'}, "📷")
	c.AddContext("a.txt", "/tmp/a.txt", TypePath, []byte("line\n"), "📁")

	want := "--- BEGIN RESOURCE:clipboard (clipboard: clipboard) ---\n" +
		"TEST\n" +
		"--- END RESOURCE:clipboard ---\n\n" +
		"--- BEGIN RESOURCE:a.txt (path: /tmp/a.txt) ---\n" +
		"line\n" +
		"--- END RESOURCE:a.txt ---"

	assert.Equal(t, want, c.ContextHistoryText())
}

// =============================================================================
// CHAT ENTRY TESTS
// =============================================================================

func TestConversation_NewSeedsGreeting(t *testing.T) {
	c := New()

	require.Len(t, c.Entries, 1)
	assert.Equal(t, RoleAssistant, c.Entries[0].Role)
	assert.Equal(t, Greeting, c.Entries[0].Raw)
	assert.Equal(t, SpeedNormal, c.Speed)
	assert.NotEmpty(t, c.ID)
	assert.True(t, c.IsEmpty())
}

func TestConversation_AddChatEntry(t *testing.T) {
	c := New()

	e, err := c.AddChatEntry(RoleUser, "Summarize @clipboard", "Summarize RESOURCE:clipboard", []string{"clipboard"})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, e.Role)
	assert.Equal(t, []string{"clipboard"}, e.Refs)
	assert.Same(t, e, c.LastEntry())
	assert.Len(t, c.Entries, 2)
}

func TestConversation_AddChatEntry_InvalidRole(t *testing.T) {
	c := New()

	_, err := c.AddChatEntry(Role("tool"), "x", "x", nil)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
	var roleErr *RoleError
	if !errors.As(err, &roleErr) || roleErr.Role != "tool" {
		t.Errorf("err = %#v, want *RoleError{Role: tool}", err)
	}
	if len(c.Entries) != 1 {
		t.Errorf("entry appended despite error")
	}
}

func TestConversation_ChatHistory(t *testing.T) {
	c := New()
	c.AddChatEntry(RoleUser, "hi @clipboard", "hi RESOURCE:clipboard", nil)
	c.AddChatEntry(RoleAssistant, "hello", "hello", nil)

	raw := c.ChatHistoryRaw()
	expanded := c.ChatHistoryExpanded()

	wantRaw := "Assistant: How can I help you?\n\nUser: hi @clipboard\n\nAssistant: hello"
	if raw != wantRaw {
		t.Errorf("ChatHistoryRaw() = %q, want %q", raw, wantRaw)
	}
	if !strings.Contains(expanded, "User: hi RESOURCE:clipboard") {
		t.Errorf("ChatHistoryExpanded() = %q, missing expanded user text", expanded)
	}
}

func TestConversation_Reset(t *testing.T) {
	c := New()
	id := c.ID
	c.AddContext("clipboard", "clipboard", TypeClipboard, []byte("x"), "")
	c.AddChatEntry(RoleUser, "a", "a", nil)
	c.SetSpeed(SpeedFast)

	c.Reset()

	assert.Equal(t, id, c.ID)
	assert.Empty(t, c.Blocks)
	require.Len(t, c.Entries, 1)
	assert.Equal(t, Greeting, c.Entries[0].Raw)
	assert.Equal(t, SpeedNormal, c.Speed)
}

func TestConversation_Title(t *testing.T) {
	c := New()
	assert.Equal(t, "New Conversation", c.Title())

	c.AddChatEntry(RoleUser, "explain\nthis", "explain\nthis", nil)
	assert.Equal(t, "explain this", c.Title())
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		in      string
		want    Speed
		wantErr bool
	}{
		{"", SpeedNormal, false},
		{"fast", SpeedFast, false},
		{" SLOW ", SpeedSlow, false},
		{"normal", SpeedNormal, false},
		{"ludicrous", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSpeed(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSpeed(%q) err = %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseSpeed(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("system"); err != nil || r != RoleSystem {
		t.Errorf("ParseRole(system) = %q, %v", r, err)
	}
	if _, err := ParseRole("bot"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ParseRole(bot) err = %v, want ErrInvalidRole", err)
	}
}

func TestRole_UnmarshalText(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"role":"assistant","raw":"hi"}`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", e.Role)
	}
	if err := json.Unmarshal([]byte(`{"role":"bot"}`), &e); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Unmarshal(bot) err = %v, want ErrInvalidRole", err)
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory(t *testing.T) {
	h := NewHistory()
	first := h.Current()
	second := h.AddConversation()

	assert.Equal(t, 2, h.Len())
	assert.Same(t, second, h.Current())

	require.NoError(t, h.Switch(first.ID))
	assert.Same(t, first, h.Current())

	err := h.Switch("nope")
	assert.ErrorIs(t, err, ErrUnknownConversation)
	assert.Same(t, first, h.Current())
}

func TestHistory_Restore(t *testing.T) {
	h := NewHistory()
	saved := New()
	saved.AddChatEntry(RoleUser, "old", "old", nil)

	h.Restore(saved)
	assert.Same(t, saved, h.Current())
	assert.Equal(t, 2, h.Len())

	replacement := *saved
	h.Restore(&replacement)
	assert.Equal(t, 2, h.Len())
	assert.Same(t, &replacement, h.Current())

	all := h.All()
	all[0] = nil
	assert.NotNil(t, h.All()[0])
}
