// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
)

func (r *runner) newAskCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply.

Tags in the message are resolved first. Without arguments the message is
read from stdin.

Examples:
  tagctx ask "Translate @clipboard to French"
  tagctx ask "Review @~/src/main.go" --model qwen2.5-coder
  git diff | tagctx ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return r.withApp(func(a *app.App) error {
				res, err := a.Submit(cmd.Context(), text)
				if err != nil {
					return err
				}
				displayReply(cmd.OutOrStdout(), res.Reply.Text, raw)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

// messageText joins args, or reads in when there are none and it is not a
// terminal.
func messageText(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && isTerminalWriter(f) {
		return "", &UsageError{Message: "no message given", Example: `tagctx ask "Summarize @clipboard"`}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", &UsageError{Message: "no message given", Example: `tagctx ask "Summarize @clipboard"`}
	}
	return string(data), nil
}

// displayReply renders markdown only when writing to a terminal, so piped
// output stays plain.
func displayReply(w io.Writer, reply string, raw bool) {
	if !isTerminalWriter(w) {
		fmt.Fprintln(w, reply)
		return
	}
	if raw {
		fmt.Fprintln(w, WrapText(reply, 0))
		return
	}
	fmt.Fprint(w, renderMarkdown(reply))
}
