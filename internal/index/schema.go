// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema creates the index tables.
const Schema = `
-- Metadata table for schema version and index state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Roots: directories added with AddRoot
CREATE TABLE IF NOT EXISTS roots (
    path TEXT PRIMARY KEY,
    added_at INTEGER NOT NULL       -- Unix timestamp
) WITHOUT ROWID;

-- Files: one row per indexed file
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,          -- absolute path
    root TEXT NOT NULL,             -- owning root
    basename TEXT NOT NULL,         -- NFC file name
    name_key TEXT NOT NULL,         -- lowercased basename for search
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL,      -- Unix timestamp
    indexed_at INTEGER NOT NULL     -- Unix timestamp
);

CREATE INDEX IF NOT EXISTS idx_files_root ON files(root);
CREATE INDEX IF NOT EXISTS idx_files_name_key ON files(name_key);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
INSERT OR IGNORE INTO metadata (key, value) VALUES ('last_full_index', '0');
`
