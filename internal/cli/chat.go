// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/complete"
	"github.com/jeranaias/tagctx/internal/config"
	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/tag"
	"github.com/jeranaias/tagctx/internal/util"
)

const chatHelp = `Commands:
  /new              Start a new conversation
  /reset            Clear the current conversation
  /context          List the context blocks of this conversation
  /speed [name]     Show or set the speed (fast, normal, slow)
  /history [expanded]
                    Show the messages of this conversation
  /conversations    List the conversations of this session
  /switch <n>       Make session conversation n current
  /resume <ref>     Continue a saved conversation
  /help             Show this help
  /quit             Exit (Ctrl+D also works)

Press Tab after @ to complete tags and file names.`

func (r *runner) newChatCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Context added with tags stays available
for the rest of the conversation.

` + chatHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := RequiresTTY("chat"); err != nil {
				return err
			}
			return r.withApp(func(a *app.App) error {
				s := &chatSession{app: a, out: cmd.OutOrStdout(), raw: raw}
				return s.run(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")
	return cmd
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineEditor wraps liner with a persistent input history.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor(a *app.App) *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	line.SetWordCompleter(tagCompleter(a))

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

func (e *lineEditor) read(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (e *lineEditor) Close() {
	if err := os.MkdirAll(filepath.Dir(e.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// tagCompleter completes the tag fragment under the cursor. liner passes
// the cursor as a rune offset.
func tagCompleter(a *app.App) liner.WordCompleter {
	return func(line string, pos int) (head string, completions []string, tail string) {
		runes := []rune(line)
		if pos < 0 || pos > len(runes) {
			pos = len(runes)
		}
		caret := len(string(runes[:pos]))

		fragment, _, ok := tag.FragmentAt(line, caret)
		if !ok {
			return line[:caret], nil, line[caret:]
		}
		// Removing the fragment leaves the caret where completions go.
		rest, at := complete.Apply(line, caret, "")
		for _, s := range a.Suggest(context.Background(), fragment) {
			completions = append(completions, s.Raw)
		}
		return rest[:at], completions, rest[at:]
	}
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession runs the read-submit-print loop.
type chatSession struct {
	app *app.App
	out io.Writer
	raw bool
}

func (s *chatSession) run(ctx context.Context) error {
	editor := newLineEditor(s.app)
	defer editor.Close()

	fmt.Fprintln(s.out, RenderConditional(TitleStyle, "tagctx")+" "+
		RenderConditional(DimStyle, "("+s.app.Connector().Name()+", /help for commands)"))
	s.printGreeting()

	for {
		input, err := editor.read(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := s.command(input)
			if err != nil {
				PrintError(s.out, err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.submit(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			PrintError(s.out, err)
		}
	}
}

func (s *chatSession) prompt() string {
	speed := s.app.Conversation().Speed
	if speed == conversation.SpeedNormal {
		return "> "
	}
	return string(speed) + "> "
}

func (s *chatSession) printGreeting() {
	if last := s.app.Conversation().LastEntry(); last != nil {
		fmt.Fprintln(s.out, last.Raw)
	}
}

func (s *chatSession) submit(ctx context.Context, input string) error {
	before := len(s.app.Conversation().Blocks)
	res, err := s.app.Submit(ctx, input)
	if err != nil {
		return err
	}
	for _, b := range s.app.Conversation().Blocks[before:] {
		fmt.Fprintln(s.out, RenderConditional(DimStyle, fmt.Sprintf("+ %s (%s, %s)", b.Label(), b.Type, formatSize(b.Size()))))
	}
	displayReply(s.out, res.Reply.Text, s.raw)
	return nil
}

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(input string) (quit bool, err error) {
	fields := strings.Fields(input)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/h", "/?":
		fmt.Fprintln(s.out, chatHelp)

	case "/new":
		s.app.NewConversation()
		fmt.Fprintln(s.out, RenderConditional(SuccessStyle, "new conversation"))
		s.printGreeting()

	case "/reset", "/clear":
		s.app.ResetConversation()
		fmt.Fprintln(s.out, RenderConditional(SuccessStyle, "conversation cleared"))

	case "/context":
		blocks := s.app.Conversation().Blocks
		if len(blocks) == 0 {
			fmt.Fprintln(s.out, "no context blocks")
			return false, nil
		}
		printBlocks(s.out, blocks)

	case "/speed":
		if len(args) == 0 {
			conv := s.app.Conversation()
			fmt.Fprintf(s.out, "speed: %s (model %s)\n", conv.Speed, s.app.Models().For(conv.Speed))
			return false, nil
		}
		speed, err := conversation.ParseSpeed(args[0])
		if err != nil {
			return false, &UsageError{Message: err.Error(), Example: "/speed fast"}
		}
		s.app.SetSpeed(speed)
		fmt.Fprintf(s.out, "speed: %s\n", speed)

	case "/history":
		conv := s.app.Conversation()
		text := conv.ChatHistoryRaw()
		if len(args) > 0 && strings.EqualFold(args[0], "expanded") {
			text = conv.ChatHistoryExpanded()
		}
		fmt.Fprintln(s.out, WrapText(text, 0))

	case "/conversations":
		current := s.app.Conversation()
		for i, c := range s.app.History() {
			marker := " "
			if c == current {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %2d. %s %s\n", marker, i+1,
				util.TruncateWidth(c.Title(), 60),
				RenderConditional(DimStyle, fmt.Sprintf("(%d messages)", len(c.Entries))))
		}

	case "/switch":
		if len(args) != 1 {
			return false, &UsageError{Message: "/switch needs a conversation number", Example: "/switch 1"}
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, &UsageError{Message: "not a number: " + args[0], Example: "/switch 1"}
		}
		conv, err := s.app.SwitchConversation(n)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "switched to %s\n", conv.Title())

	case "/resume":
		if len(args) != 1 {
			return false, &UsageError{Message: "/resume needs a conversation", Example: "/resume 1"}
		}
		conv, err := s.app.Resume(args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "resumed %s (%d messages, %d blocks)\n", conv.Title(), len(conv.Entries), len(conv.Blocks))

	default:
		return false, &UsageError{Message: "unknown command " + name, Example: "/help"}
	}
	return false, nil
}
