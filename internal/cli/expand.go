// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/complete"
	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/macro"
	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/tag"
	"github.com/jeranaias/tagctx/internal/util"
)

func (r *runner) newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <text...>",
		Short: "Resolve tags and print the result without calling the model",
		Example: `  tagctx expand "Summarize @clipboard"
  tagctx expand '@fix @"~/My Notes.md"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				req, err := a.Expand(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, req.Working)
				conv := a.Conversation()
				if len(conv.Blocks) > 0 {
					fmt.Fprintln(w)
					printBlocks(w, conv.Blocks)
				}
				if req.NeedsImage {
					fmt.Fprintln(w, RenderConditional(DimStyle, "(the latest image would be attached)"))
				}
				if conv.Speed != conversation.SpeedNormal {
					fmt.Fprintln(w, RenderConditional(DimStyle, "speed: "+string(conv.Speed)))
				}
				return nil
			})
		},
	}
}

// printBlocks writes one row per block: icon, name, type, size and source.
func printBlocks(w io.Writer, blocks []*conversation.Block) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		util.PadRight("NAME", 24), util.PadRight("TYPE", 9), util.PadRight("SIZE", 8), "SOURCE")
	for _, b := range blocks {
		name := util.TruncateWidth(b.Label(), 24)
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			util.PadRight(name, 24),
			util.PadRight(string(b.Type), 9),
			util.PadRight(formatSize(b.Size()), 8),
			b.Source)
	}
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func (r *runner) newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <text...>",
		Short: "Print the tags found in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			w := cmd.OutOrStdout()
			spans := tag.Scan(text)
			if len(spans) == 0 {
				fmt.Fprintln(w, "no tags")
				return nil
			}
			for _, s := range spans {
				fmt.Fprintf(w, "%4d %4d  %s\n", s.Start, s.End, s.Text)
			}
			return nil
		},
	}
}

func (r *runner) newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <fragment>",
		Short: "Print suggestions for a partially typed tag",
		Example: `  tagctx complete @cl
  tagctx complete @~/Doc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(a *app.App) error {
				printSuggestions(cmd.OutOrStdout(), a.Suggest(cmd.Context(), args[0]))
				return nil
			})
		},
	}
}

func printSuggestions(w io.Writer, suggestions []complete.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "no suggestions")
		return
	}
	width := 0
	for _, s := range suggestions {
		if sw := util.StringWidth(s.Display); sw > width {
			width = sw
		}
	}
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s  %s\n", util.PadRight(s.Display, width), RenderConditional(DimStyle, s.Raw))
	}
}

func (r *runner) newShortcutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shortcuts",
		Short: "List the loaded shortcuts and the tag handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				w := cmd.OutOrStdout()
				printShortcuts(w, a.Expander().Shortcuts(), a.Config().Shortcuts.Dirs)
				fmt.Fprintln(w)
				printHandlers(w, a.Registry().Handlers())
				return nil
			})
		},
	}
}

func printShortcuts(w io.Writer, list []macro.Shortcut, dirs []string) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no shortcuts loaded")
		fmt.Fprintln(w, RenderConditional(DimStyle, "searched: "+strings.Join(dirs, ", ")))
		return
	}
	width := 0
	for _, s := range list {
		if sw := util.StringWidth(s.Trigger); sw > width {
			width = sw
		}
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s  %s\n",
			RenderConditional(HighlightStyle, util.PadRight(s.Trigger, width)),
			util.TruncateWidth(util.OneLine(s.Replacement), 70))
	}
}

// printHandlers writes one row per handler: name, owned prefixes, config
// tags and how it completes ("prefix", "any" or "-").
func printHandlers(w io.Writer, hs []plugin.Handler) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		util.PadRight("HANDLER", 10), util.PadRight("TAGS", 34), util.PadRight("CONFIG", 12), "COMPLETES")
	for _, h := range hs {
		caps := plugin.CapabilitiesOf(h)
		completes := "-"
		switch {
		case caps.CatchAll:
			completes = "any"
		case caps.Autocomplete:
			completes = "prefix"
		}
		configTags := "-"
		if len(caps.ConfigPrefixes) > 0 {
			configTags = strings.Join(caps.ConfigPrefixes, " ")
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			util.PadRight(h.Name(), 10),
			util.PadRight(util.TruncateWidth(strings.Join(caps.Prefixes, " "), 34), 34),
			util.PadRight(configTags, 12),
			completes)
	}
}
