// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/config"
	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/storage"
	"github.com/jeranaias/tagctx/internal/util"
)

// openStore opens the conversation store named by the configuration
// without building a full App.
func (r *runner) openStore() (*storage.ConversationStore, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Persist {
		return nil, ErrHistoryDisabled
	}
	store, err := storage.NewConversationStoreWithDir(config.ExpandPath(cfg.History.Dir))
	if err != nil {
		return nil, err
	}
	store.MaxConversations = cfg.History.MaxConversations
	return store, nil
}

// =============================================================================
// HISTORY
// =============================================================================

func (r *runner) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
		Long: `List, show, search, export and delete saved conversations.

Conversations are referred to by their number in 'history list', their ID
or a unique ID prefix.`,
	}
	cmd.AddCommand(
		r.newHistoryListCmd(),
		r.newHistoryShowCmd(),
		r.newHistorySearchCmd(),
		r.newHistoryExportCmd(),
		r.newHistoryDeleteCmd(),
		r.newHistoryClearCmd(),
	)
	return cmd
}

func (r *runner) newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			metas, err := store.List()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(metas))
			if len(metas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func (r *runner) newHistoryShowCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			displayReply(cmd.OutOrStdout(), stored.ExportMarkdown(), raw)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source")
	return cmd
}

func (r *runner) newHistorySearchCmd() *cobra.Command {
	var entries bool
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Find conversations by title or preview",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			var metas []storage.ConversationMeta
			if entries {
				metas, err = store.SearchEntries(query)
			} else {
				metas, err = store.Search(query)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(metas))
			if len(metas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&entries, "entries", false, "search every message instead of titles")
	return cmd
}

func (r *runner) newHistoryExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a conversation as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			md := stored.ExportMarkdown()
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}
			if err := util.AtomicWriteFile(config.ExpandPath(output), []byte(md), 0644); err != nil {
				return &CommandError{Command: "history", Action: "export", Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func (r *runner) newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(stored.Conversation.ID); err != nil {
				return &CommandError{Command: "history", Action: "delete", Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", shortID(stored.Conversation.ID), stored.Title)
			return nil
		},
	}
}

func (r *runner) newHistoryClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all saved conversations?") {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			}
			if err := store.Clear(); err != nil {
				return &CommandError{Command: "history", Action: "clear", Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on w and reads the answer from in.
// Anything but y or yes is a no.
func confirm(in io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// CONTEXT BLOCKS
// =============================================================================

func (r *runner) newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect the context blocks of a saved conversation",
	}
	cmd.AddCommand(r.newContextListCmd(), r.newContextShowCmd())
	return cmd
}

func (r *runner) newContextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <ref>",
		Short: "List the blocks of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			if len(stored.Conversation.Blocks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no context blocks")
				return nil
			}
			printBlocks(cmd.OutOrStdout(), stored.Conversation.Blocks)
			return nil
		},
	}
}

func (r *runner) newContextShowCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "show <ref> <name>",
		Short: "Print one block of a conversation",
		Long: `Print one block of a conversation. File blocks are syntax highlighted
when writing to a terminal.

Examples:
  tagctx context show 1 clipboard
  tagctx context show 3f2a main.go`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.openStore()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			name := strings.TrimPrefix(args[1], conversation.ReferencePrefix)
			block := stored.Conversation.Block(name)
			if block == nil {
				return &CommandError{Command: "context", Action: "show",
					Err: fmt.Errorf("no block named %q in %s", name, shortID(stored.Conversation.ID))}
			}
			writeBlock(cmd.OutOrStdout(), block, plain)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable syntax highlighting")
	return cmd
}

func writeBlock(w io.Writer, b *conversation.Block, plain bool) {
	if !b.Type.IsText() {
		fmt.Fprintf(w, "%s: %s, %s\n", b.Label(), b.Type, formatSize(b.Size()))
		return
	}
	text := b.Text()
	if !plain && b.Type == conversation.TypePath && isTerminalWriter(w) && ColorsEnabled() {
		text = highlight(text, b.Source)
	}
	fmt.Fprint(w, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(w)
	}
}
