// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"errors"
	"fmt"
)

// Registration errors.
var (
	ErrNilHandler       = errors.New("nil handler")
	ErrEmptyName        = errors.New("handler name is empty")
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrNoPrefixes       = errors.New("handler declares no prefixes")
	ErrEmptyPrefix      = errors.New("handler declares an empty prefix")
)

// ErrNotHandled is returned by Expand when a handler owns the tag's prefix
// but does not recognize the tag. The dispatcher leaves the span exactly as
// typed.
var ErrNotHandled = errors.New("tag not handled")

// ErrRequestAborted is matched by every AbortError.
// Use errors.Is(err, ErrRequestAborted) to check for it.
var ErrRequestAborted = errors.New("request aborted")

// AbortError reports the handler failure that stopped a dispatch.
type AbortError struct {
	Tag     string
	Handler string

	// Start and End locate the failing span in the working text as it was
	// when the handler ran.
	Start int
	End   int

	Err error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("%s failed on %q: %v", e.Handler, e.Tag, e.Err)
}

// Unwrap returns the handler's error.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *AbortError) Is(target error) bool {
	return target == ErrRequestAborted
}
