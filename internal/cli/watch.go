// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/handlers"
	"github.com/jeranaias/tagctx/internal/util"
)

// DefaultWatchInterval is how often the clipboard is polled.
const DefaultWatchInterval = 500 * time.Millisecond

// clipboardReadWriter is the clipboard as the watcher uses it.
type clipboardReadWriter interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

func (r *runner) newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Answer clipboard text that starts with " + app.Trigger,
		Long: `Poll the clipboard. When the copied text starts with ` + app.Trigger + `, the rest is
submitted and the reply replaces the clipboard contents. Stop with Ctrl+C.

Example: copy "@@ translate to German: good morning", wait, then paste.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "watching the clipboard for %q (Ctrl+C to stop)\n", app.Trigger)
				return watchClipboard(cmd.Context(), a, handlers.SystemClipboard{}, interval, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", DefaultWatchInterval, "clipboard poll interval")
	return cmd
}

// watchClipboard polls cb until ctx is done. Text that was already on the
// clipboard when watching started is ignored.
func watchClipboard(ctx context.Context, a *app.App, cb clipboardReadWriter, interval time.Duration, w io.Writer) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	last, _ := cb.ReadAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		text, err := cb.ReadAll()
		if err != nil || text == last {
			continue
		}
		last = text

		reply, ok, err := a.HandleTrigger(ctx, text)
		if !ok {
			continue
		}
		if err != nil {
			PrintError(w, err)
			continue
		}
		if err := cb.WriteAll(reply); err != nil {
			PrintError(w, err)
			continue
		}
		// Our own write must not count as a new copy.
		last = reply
		fmt.Fprintf(w, "%s %s\n", RenderConditional(SuccessStyle, "answered"),
			util.TruncateWidth(util.OneLine(text), 60))
	}
}
