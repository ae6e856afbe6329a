// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plugin routes @tags to the handlers that resolve them.
//
// A Handler declares one or more literal prefixes. The Registry keeps
// handlers in registration order and resolves a tag to the handler owning
// the longest matching prefix; equal-length ties go to the handler
// registered first.
//
// The Dispatcher scans a request's working text, resolves every span from
// right to left and splices each replacement in place, so earlier span
// offsets stay valid. The first handler failure aborts the request:
//
//	d := plugin.NewDispatcher(reg, plugin.WithLogger(logger))
//	req := plugin.NewRequest("Summarize @clipboard please")
//	if err := d.Dispatch(ctx, req, conv); err != nil {
//	    var abort *plugin.AbortError
//	    if errors.As(err, &abort) {
//	        fmt.Println("failed on", abort.Tag)
//	    }
//	}
//
// # Optional capabilities
//
// Handlers may also implement ConfigHandler (configuration tags found while
// loading shortcut files), Autocompleter (dynamic completion candidates) and
// CatchAll (asked for completions regardless of prefix). CapabilitiesOf folds
// these into a single Capabilities value.
package plugin
