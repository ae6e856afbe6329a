// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command for tagctx.
//
// Shows the model provider, which model each speed maps to and whether the
// server has it pulled, plus the shortcut, index and history state.
//
// Usage:
//
//	tagctx status
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/conversation"
)

// statusTimeout bounds the server checks.
const statusTimeout = 5 * time.Second

// modelServer is implemented by connectors backed by a model server.
type modelServer interface {
	CheckRunning(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
}

func (r *runner) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the model server, models, shortcuts and index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(func(a *app.App) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
				defer cancel()
				printStatus(ctx, cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
}

func printStatus(ctx context.Context, w io.Writer, a *app.App) {
	fmt.Fprintln(w, RenderConditional(TitleStyle, "tagctx status"))
	fmt.Fprintln(w, RenderSeparator())

	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", RenderLabel(label), value)
	}

	conn := a.Connector()
	row("Provider:", conn.Name())

	var pulled []string
	server, isServer := conn.(modelServer)
	switch {
	case !isServer:
		row("Server:", "not needed")
	case server.CheckRunning(ctx) != nil:
		row("Server:", RenderConditional(ErrorStyle, "not running"))
		isServer = false
	default:
		row("Server:", RenderConditional(SuccessStyle, "running"))
		models, err := server.ListModels(ctx)
		if err != nil {
			row("Models:", RenderConditional(ErrorStyle, err.Error()))
			isServer = false
		}
		pulled = models
	}

	models := a.Models()
	for _, speed := range []conversation.Speed{conversation.SpeedNormal, conversation.SpeedFast, conversation.SpeedSlow} {
		name := models.For(speed)
		value := name
		if isServer {
			if hasModel(pulled, name) {
				value += " " + RenderConditional(SuccessStyle, "(available)")
			} else {
				value += " " + RenderConditional(WarningStyle, "(not pulled)")
			}
		}
		row(strings.ToUpper(string(speed[:1]))+string(speed[1:])+" model:", value)
	}

	fmt.Fprintln(w, RenderSeparator())
	row("Handlers:", fmt.Sprintf("%d", a.Registry().Len()))
	row("Shortcuts:", fmt.Sprintf("%d", a.Expander().Len()))

	if idx := a.Index(); idx == nil {
		row("Index:", "disabled")
	} else {
		files, _ := idx.Count()
		roots, _ := idx.Roots()
		row("Index:", fmt.Sprintf("%d files under %d roots", files, len(roots)))
	}

	if store := a.Store(); store == nil {
		row("History:", "disabled")
	} else {
		metas, _ := store.List()
		row("History:", fmt.Sprintf("%d saved conversations", len(metas)))
	}
}

// hasModel reports whether name is among the pulled models. A name without
// a tag matches its ":latest" form.
func hasModel(pulled []string, name string) bool {
	for _, m := range pulled {
		if m == name || (!strings.Contains(name, ":") && m == name+":latest") {
			return true
		}
	}
	return false
}
