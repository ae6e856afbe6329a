// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index keeps a searchable list of files under a set of root
// directories.
//
// The index lives in a SQLite database (pure Go driver) so it survives
// restarts. File names are stored NFC-normalized and lowercased, so a search
// for "résumé" finds "Résumé.md" whether the file system stores the name
// composed or decomposed.
//
// # Usage
//
//	idx, err := index.Open(index.DefaultConfig(dbPath))
//	n, err := idx.AddRoot(ctx, "~/Documents/notes")
//	files, err := idx.Search("meeting", 10)
//
// Watch keeps the index current while the process runs:
//
//	if err := idx.Watch(); err != nil {
//	    logger.Warn("index watch disabled", zap.Error(err))
//	}
//	defer idx.Close()
package index
