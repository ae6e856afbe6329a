// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/util"
)

// DefaultMaxConversations is how many conversations a new store keeps.
const DefaultMaxConversations = 100

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a conversation as written to disk.
type StoredConversation struct {
	Title string `json:"title"`
	Model string `json:"model,omitempty"`

	Conversation *conversation.Conversation `json:"conversation"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	EntryCount int       `json:"entry_count"`
	BlockCount int       `json:"block_count"`
	Preview    string    `json:"preview"` // First user entry truncated
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore handles conversation persistence.
type ConversationStore struct {
	// BaseDir is the directory for storing conversations
	// Default: ~/.tagctx/conversations/
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int
}

// NewConversationStoreWithDir creates a store with a custom directory.
func NewConversationStoreWithDir(baseDir string) (*ConversationStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &ConversationStore{
		BaseDir:          baseDir,
		MaxConversations: DefaultMaxConversations,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists conv. Conversations without entries beyond the greeting are
// not worth keeping and are skipped.
func (s *ConversationStore) Save(conv *conversation.Conversation, model string) error {
	if conv == nil || conv.IsEmpty() {
		return nil
	}
	if !validID(conv.ID) {
		return &ConversationError{Message: "invalid conversation id: " + strconv.Quote(conv.ID)}
	}

	data, err := json.MarshalIndent(StoredConversation{
		Title:        conv.Title(),
		Model:        model,
		Conversation: conv,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := util.AtomicWriteFileWithDir(s.filePath(conv.ID), data, 0600, 0700); err != nil {
		return err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}
	return nil
}

// enforceLimit removes oldest conversations if over limit.
func (s *ConversationStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}

	// List is most recent first
	for _, meta := range metas[s.MaxConversations:] {
		s.Delete(meta.ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*StoredConversation, error) {
	if !validID(id) {
		return nil, ErrConversationNotFound
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var stored StoredConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored.Conversation == nil {
		return nil, &ConversationError{Message: "corrupt conversation file: " + id}
	}
	return &stored, nil
}

// LoadByIndex loads a conversation by its index in the list (0 = most recent).
func (s *ConversationStore) LoadByIndex(index int) (*StoredConversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}

	return s.Load(metas[index].ID)
}

// Resolve loads a conversation by full ID, unique ID prefix or 1-based
// list position.
func (s *ConversationStore) Resolve(ref string) (*StoredConversation, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		return s.LoadByIndex(n - 1)
	}
	if stored, err := s.Load(ref); err == nil {
		return stored, nil
	}

	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	var match string
	for _, m := range metas {
		if strings.HasPrefix(m.ID, ref) {
			if match != "" {
				return nil, &ConversationError{Message: "ambiguous conversation id: " + ref}
			}
			match = m.ID
		}
	}
	if match == "" {
		return nil, ErrConversationNotFound
	}
	return s.Load(match)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations (most recent first).
func (s *ConversationStore) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	var metas []ConversationMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		stored, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}
		metas = append(metas, stored.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search finds conversations whose title or preview contains query.
func (s *ConversationStore) Search(query string) ([]ConversationMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// SearchEntries finds conversations where any entry's raw text contains
// query (case-insensitive).
func (s *ConversationStore) SearchEntries(query string) ([]ConversationMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []ConversationMeta
	for _, meta := range all {
		stored, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, e := range stored.Conversation.Entries {
			if strings.Contains(strings.ToLower(e.Raw), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	if !validID(id) {
		return ErrConversationNotFound
	}
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a conversation ID.
func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// validID rejects IDs that would escape BaseDir.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Meta summarizes the stored conversation for listings.
func (c *StoredConversation) Meta() ConversationMeta {
	conv := c.Conversation
	return ConversationMeta{
		ID:         conv.ID,
		Title:      c.Title,
		Model:      c.Model,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
		EntryCount: len(conv.Entries),
		BlockCount: len(conv.Blocks),
		Preview:    c.Preview(),
	}
}

// Preview returns the first user entry, truncated to 80 characters.
func (c *StoredConversation) Preview() string {
	for _, e := range c.Conversation.Entries {
		if e.Role == conversation.RoleUser && e.Raw != "" {
			return util.TruncateRunes(util.OneLine(e.Raw), 80)
		}
	}
	return ""
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList formats conversations as a table with position, ID, date,
// entry count and title.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("#", 4) + util.PadRight("ID", 10) + util.PadRight("Updated", 18) +
		util.PadRight("Entries", 9) + "Title\n")
	for i, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(strconv.Itoa(i+1), 4) +
			util.PadRight(id, 10) +
			util.PadRight(m.UpdatedAt.Format("2006-01-02 15:04"), 18) +
			util.PadRight(strconv.Itoa(m.EntryCount), 9) +
			util.TruncateWidth(m.Title, 50) + "\n")
	}
	return sb.String()
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as Markdown: entries in order,
// then the context blocks that hold text.
func (c *StoredConversation) ExportMarkdown() string {
	conv := c.Conversation
	var sb strings.Builder
	sb.WriteString("# " + c.Title + "\n\n")
	sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, e := range conv.Entries {
		sb.WriteString("**" + e.Role.DisplayName() + "** (" + e.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(e.Raw)
		sb.WriteString("\n\n---\n\n")
	}

	for _, b := range conv.Blocks {
		if !b.Type.IsText() {
			continue
		}
		sb.WriteString("## " + conversation.Reference(b.Name) + " (" + string(b.Type) + ": " + b.Source + ")\n\n")
		sb.WriteString("```\n" + b.Text())
		if !strings.HasSuffix(b.Text(), "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}
	return sb.String()
}
