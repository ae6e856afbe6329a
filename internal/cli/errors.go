// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/config"
	"github.com/jeranaias/tagctx/internal/handlers"
	"github.com/jeranaias/tagctx/internal/llm"
	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = 0

	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1

	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2

	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3

	// ExitNetworkError indicates the model server or a URL was unreachable
	ExitNetworkError = 5

	// ExitNotFoundError indicates a conversation, block or file was not found
	ExitNotFoundError = 7

	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8

	// ExitAbortedError indicates a tag handler stopped the request
	ExitAbortedError = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "history"
	Action  string // e.g. "delete"
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports bad arguments.
type UsageError struct {
	Message string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return e.Message + "\nExample: " + e.Example
	}
	return e.Message
}

// ErrHistoryDisabled is returned by history commands when persistence is off.
var ErrHistoryDisabled = errors.New("conversation history is disabled (history.persist = false)")

// ErrIndexDisabled is returned by the index command when no database is
// configured.
var ErrIndexDisabled = errors.New("file index is disabled (files.index_db is empty)")

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCodeFor maps an error to a process exit code.
func ExitCodeFor(err error) int {
	var (
		usage     *UsageError
		validErrs config.ValidateErrors
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validErrs):
		return ExitConfigError
	case errors.Is(err, plugin.ErrRequestAborted):
		return ExitAbortedError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, llm.ErrTimeout):
		return ExitTimeoutError
	case errors.Is(err, llm.ErrNotRunning), errors.Is(err, llm.ErrConnection),
		errors.Is(err, handlers.ErrFetchFailed):
		return ExitNetworkError
	case errors.Is(err, storage.ErrConversationNotFound), errors.Is(err, llm.ErrModelNotFound),
		errors.Is(err, handlers.ErrFileNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// hintFor returns a suggestion for well-known failures.
func hintFor(err error) string {
	switch {
	case errors.Is(err, llm.ErrNotRunning):
		return "Start Ollama with 'ollama serve', or pass --fake to try tagctx offline."
	case errors.Is(err, llm.ErrModelNotFound):
		return "Pull the model with 'ollama pull <model>' or choose another with --model."
	case errors.Is(err, handlers.ErrClipboardEmpty):
		return "Copy some text first."
	case errors.Is(err, handlers.ErrInvalidPath):
		return "Only your own home works with ~. Write other paths in full, like @/home/name/notes.md."
	case errors.Is(err, handlers.ErrCaptureCancelled):
		return "The screenshot was cancelled."
	case errors.Is(err, app.ErrEmptyInput):
		return "Type a message after the command."
	case errors.Is(err, ErrHistoryDisabled):
		return "Set history.persist = true with 'tagctx config set history.persist true'."
	}
	return ""
}

// PrintError writes err and any hint to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, RenderConditional(ErrorStyle, "Error: ")+err.Error())
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(w, RenderConditional(DimStyle, hint))
	}
}
