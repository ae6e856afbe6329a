// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tagctx/internal/config"
)

func (r *runner) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Long: `Show or change the configuration.

Keys use dot notation: llm.model, files.index_db, history.persist...
Run 'tagctx config keys' for the full list.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := r.loadConfig()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := r.loadConfig()
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return &UsageError{Message: err.Error(), Example: "tagctx config get llm.model"}
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a value and save the config file",
			Example: `  tagctx config set llm.model qwen2.5:14b
  tagctx config set shortcuts.dirs "~/.tagctx/shortcuts,~/work/shortcuts"`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := r.configFile()
				if err != nil {
					return err
				}
				cfg, err := readConfigFile(path)
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return &UsageError{Message: err.Error(), Example: "tagctx config set llm.model llama3.2"}
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				if strings.HasSuffix(path, ".json") {
					err = config.SaveJSON(cfg, path)
				} else {
					err = config.SaveTOML(cfg, path)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List every configuration key",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				for _, k := range config.Keys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := r.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}

// configFile returns --config, or the default file: TOML unless only a
// JSON file exists.
func (r *runner) configFile() (string, error) {
	if r.opts.configPath != "" {
		return r.opts.configPath, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := config.ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// readConfigFile loads path over the defaults without environment
// overrides, so saving it does not capture them. A missing file yields the
// defaults.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
