// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
)

func (r *runner) newIndexCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index [dir...]",
		Short: "Add directories to the file index",
		Long: `Add directories to the file index used to complete @ file names.

Roots are remembered in the index database. Shortcut files can add roots
with ["@IndexFiles", "<dir>"] entries.

Examples:
  tagctx index ~/Documents/notes
  tagctx index --rebuild`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !rebuild {
				return &UsageError{Message: "give at least one directory or --rebuild", Example: "tagctx index ~/notes"}
			}
			return r.withApp(func(a *app.App) error {
				idx := a.Index()
				if idx == nil {
					return ErrIndexDisabled
				}
				w := cmd.OutOrStdout()
				for _, dir := range args {
					n, err := idx.AddRoot(cmd.Context(), dir)
					if err != nil {
						return &CommandError{Command: "index", Action: dir, Err: err}
					}
					fmt.Fprintf(w, "%s %s: %d files\n", RenderConditional(SuccessStyle, "indexed"), dir, n)
				}
				if rebuild {
					if err := idx.Rebuild(cmd.Context()); err != nil {
						return &CommandError{Command: "index", Action: "rebuild", Err: err}
					}
				}

				total, err := idx.Count()
				if err != nil {
					return err
				}
				roots, err := idx.Roots()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d files under %d roots\n", total, len(roots))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "re-walk every indexed root")
	return cmd
}
