// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shortcuts loads macro definitions from TOML files.
//
// A shortcut file holds a single array of [trigger, replacement] pairs:
//
//	shortcuts = [
//	    ["@fix", "Fix spelling and grammar in the following text:"],
//	    ["@IndexFiles", "~/Documents/notes"],
//	]
//
// Triggers must start with '@'. Malformed entries are skipped without
// failing the file. A trigger that matches a handler's configuration prefix
// is handed to that handler instead of becoming a macro.
package shortcuts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/macro"
	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/tag"
)

// FileExt is the extension of shortcut files.
const FileExt = ".toml"

// Report counts what a load produced.
type Report struct {
	Files      int
	Shortcuts  int
	ConfigTags int
	Skipped    int
}

// Add accumulates other into r.
func (r *Report) Add(other Report) {
	r.Files += other.Files
	r.Shortcuts += other.Shortcuts
	r.ConfigTags += other.ConfigTags
	r.Skipped += other.Skipped
}

// Loader feeds shortcut files into an Expander and a Registry.
type Loader struct {
	expander *macro.Expander
	registry *plugin.Registry
	logger   *zap.Logger
}

// NewLoader returns a loader. registry may be nil, in which case every
// valid entry becomes a macro.
func NewLoader(expander *macro.Expander, registry *plugin.Registry, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{expander: expander, registry: registry, logger: logger}
}

type document struct {
	Shortcuts []interface{} `toml:"shortcuts"`
}

// LoadFile reads one shortcut file. Files without the .toml extension are
// ignored.
func (l *Loader) LoadFile(path string) (Report, error) {
	var rep Report
	if !strings.EqualFold(filepath.Ext(path), FileExt) {
		l.logger.Debug("skipping non-TOML file", zap.String("path", path))
		return rep, nil
	}

	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return rep, fmt.Errorf("parse shortcuts %s: %w", path, err)
	}
	rep.Files = 1

	for i, raw := range doc.Shortcuts {
		trigger, value, ok := pair(raw)
		if !ok {
			l.logger.Debug("skipping malformed shortcut",
				zap.String("path", path),
				zap.Int("index", i),
				zap.Any("entry", raw))
			rep.Skipped++
			continue
		}

		if l.registry != nil {
			if ch, prefix, found := l.registry.ResolveConfig(trigger); found {
				if err := ch.OnConfigTag(trigger, value); err != nil {
					l.logger.Warn("config tag rejected",
						zap.String("path", path),
						zap.String("tag", trigger),
						zap.String("handler", ch.Name()),
						zap.Error(err))
					rep.Skipped++
					continue
				}
				l.logger.Debug("config tag applied",
					zap.String("tag", trigger),
					zap.String("prefix", prefix),
					zap.String("handler", ch.Name()))
				rep.ConfigTags++
				continue
			}
		}

		l.expander.Add(trigger, value)
		rep.Shortcuts++
	}

	l.logger.Debug("loaded shortcut file",
		zap.String("path", path),
		zap.Int("shortcuts", rep.Shortcuts),
		zap.Int("config_tags", rep.ConfigTags),
		zap.Int("skipped", rep.Skipped))
	return rep, nil
}

// LoadDir reads every regular .toml file in dir, in name order. A missing
// directory is not an error. Files that fail to parse are logged and
// skipped.
func (l *Loader) LoadDir(dir string) (Report, error) {
	var rep Report
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rep, nil
		}
		return rep, fmt.Errorf("read shortcut dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fileRep, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			l.logger.Warn("skipping shortcut file", zap.Error(err))
			continue
		}
		rep.Add(fileRep)
	}
	return rep, nil
}

// LoadDirs reads each directory in order. Unreadable directories are
// logged and skipped.
func (l *Loader) LoadDirs(dirs []string) Report {
	var rep Report
	for _, dir := range dirs {
		dirRep, err := l.LoadDir(dir)
		if err != nil {
			l.logger.Warn("skipping shortcut dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		rep.Add(dirRep)
	}
	return rep
}

// pair validates one entry of the shortcuts array.
func pair(raw interface{}) (trigger, value string, ok bool) {
	items, isSlice := raw.([]interface{})
	if !isSlice || len(items) != 2 {
		return "", "", false
	}
	trigger, ok1 := items[0].(string)
	value, ok2 := items[1].(string)
	if !ok1 || !ok2 || !strings.HasPrefix(trigger, string(tag.Marker)) {
		return "", "", false
	}
	return trigger, value, true
}
