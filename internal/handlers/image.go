// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/plugin"
)

// CaptureMode selects what the user is asked to capture.
type CaptureMode int

const (
	CaptureSelection CaptureMode = iota
	CaptureWindow
)

// String returns the tag-style name of the mode.
func (m CaptureMode) String() string {
	if m == CaptureWindow {
		return "window"
	}
	return "selection"
}

// ImagePlaceholder replaces an image tag in the prompt.
const ImagePlaceholder = "the image"

// Capturer grabs a screenshot and returns the encoded image.
type Capturer interface {
	Capture(ctx context.Context, mode CaptureMode) ([]byte, error)
}

// ScreenCapture runs the macOS screencapture tool interactively.
type ScreenCapture struct {
	// Command is the executable, "screencapture" when empty.
	Command string

	// TempDir receives the capture file, os.TempDir() when empty.
	TempDir string
}

// Capture implements Capturer.
func (s ScreenCapture) Capture(ctx context.Context, mode CaptureMode) ([]byte, error) {
	command := s.Command
	if command == "" {
		command = "screencapture"
	}
	dir := s.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	out := filepath.Join(dir, "tagctx-"+uuid.NewString()+".png")
	defer os.Remove(out)

	args := []string{"-x", "-i"}
	if mode == CaptureWindow {
		args = append(args, "-Jwindow")
	}
	args = append(args, out)

	if err := exec.CommandContext(ctx, command, args...).Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		// screencapture exits 0 without writing a file when the user
		// presses Escape.
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCaptureCancelled
		}
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if len(data) == 0 {
		return nil, ErrCaptureCancelled
	}
	return data, nil
}

// Image resolves @selection and @window.
type Image struct {
	capturer Capturer
	logger   *zap.Logger
}

// NewImage returns an image handler. A nil capturer uses ScreenCapture.
func NewImage(capturer Capturer, logger *zap.Logger) *Image {
	if capturer == nil {
		capturer = ScreenCapture{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{capturer: capturer, logger: logger}
}

// Name implements plugin.Handler.
func (i *Image) Name() string { return "image" }

// Prefixes implements plugin.Handler.
func (i *Image) Prefixes() []string { return []string{"@selection", "@window"} }

// Expand captures a screenshot into a new image block and flags the request
// as needing it.
func (i *Image) Expand(ctx context.Context, tag string, conv *conversation.Conversation, req *plugin.Request) (string, error) {
	var mode CaptureMode
	switch tag {
	case "@selection":
		mode = CaptureSelection
	case "@window":
		mode = CaptureWindow
	default:
		return "", plugin.ErrNotHandled
	}

	data, err := i.capturer.Capture(ctx, mode)
	if err != nil {
		return "", err
	}

	source := "screenshot:" + uuid.NewString()
	name := conv.AddContext("Screenshot", source, conversation.TypeImage, data, "📷")
	req.Reference(name)
	req.NeedsImage = true

	i.logger.Debug("screenshot captured",
		zap.String("mode", mode.String()),
		zap.String("block", name),
		zap.Int("bytes", len(data)))
	return ImagePlaceholder, nil
}
