// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tagctx command line.
//
// Commands:
//
//	tagctx ask <text>                    One submission, reply rendered as markdown
//	tagctx chat                          Interactive session with tag completion
//	tagctx expand <text>                 Resolve tags without calling the model
//	tagctx scan <text>                   Print the tags found in text
//	tagctx complete <fragment>           Print suggestions for a tag fragment
//	tagctx shortcuts                     List loaded shortcuts
//	tagctx index <dir>...                Add directories to the file index
//	tagctx history list|show|delete|clear|search|export
//	tagctx context list|show             Inspect the blocks of a saved conversation
//	tagctx config show|get|set|path      Inspect or change the configuration
//	tagctx watch                         Submit clipboard text starting with @@
//	tagctx version
//
// Global flags:
//
//	--config PATH   Use this config file instead of ~/.tagctx/config.toml
//	--debug         Debug logging to stderr
//	--fake          Use the offline fake model
//	-m, --model     Override the normal-speed model
package cli
