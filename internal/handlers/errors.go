// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import "errors"

var (
	ErrClipboardEmpty       = errors.New("clipboard is empty")
	ErrClipboardUnavailable = errors.New("clipboard not available")

	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid path")
	ErrIsDirectory  = errors.New("path is a directory")
	ErrBinaryFile   = errors.New("file appears to be binary")

	ErrInvalidURL  = errors.New("invalid URL")
	ErrFetchFailed = errors.New("fetch failed")

	ErrCaptureFailed    = errors.New("screen capture failed")
	ErrCaptureCancelled = errors.New("screen capture cancelled")
)
