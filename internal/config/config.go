// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/tagctx/internal/util"
)

// Providers that Validate accepts.
const (
	ProviderOllama = "ollama"
	ProviderFake   = "fake"
)

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a string ("15s", "2m") in TOML
// and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tagctx configuration.
type Config struct {
	LLM          LLMConfig          `toml:"llm" json:"llm"`
	Shortcuts    ShortcutsConfig    `toml:"shortcuts" json:"shortcuts"`
	Files        FilesConfig        `toml:"files" json:"files"`
	URL          URLConfig          `toml:"url" json:"url"`
	Image        ImageConfig        `toml:"image" json:"image"`
	Autocomplete AutocompleteConfig `toml:"autocomplete" json:"autocomplete"`
	Dispatch     DispatchConfig     `toml:"dispatch" json:"dispatch"`
	History      HistoryConfig      `toml:"history" json:"history"`
	Logging      LoggingConfig      `toml:"logging" json:"logging"`
}

// LLMConfig selects the model connector and models.
type LLMConfig struct {
	// Provider is "ollama" or "fake".
	Provider  string `toml:"provider" json:"provider"`
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`

	// Model is used at normal speed; FastModel and SlowModel fall back to it.
	Model     string `toml:"model" json:"model"`
	FastModel string `toml:"fast_model" json:"fast_model"`
	SlowModel string `toml:"slow_model" json:"slow_model"`

	SystemPrompt string   `toml:"system_prompt" json:"system_prompt"`
	Timeout      Duration `toml:"timeout" json:"timeout"`
}

// ShortcutsConfig lists the directories scanned for shortcut files.
type ShortcutsConfig struct {
	Dirs []string `toml:"dirs" json:"dirs"`
}

// FilesConfig configures the file handler and file index.
type FilesConfig struct {
	MaxContextBytes int64    `toml:"max_context_bytes" json:"max_context_bytes"`
	MinSearchChars  int      `toml:"min_search_chars" json:"min_search_chars"`
	Extensions      []string `toml:"extensions" json:"extensions"`

	// IndexDB is the SQLite database path. Empty disables the index.
	IndexDB string `toml:"index_db" json:"index_db"`
	Watch   bool   `toml:"watch" json:"watch"`

	CacheEntries int `toml:"cache_entries" json:"cache_entries"`
}

// URLConfig configures web page fetching.
type URLConfig struct {
	Timeout           Duration `toml:"timeout" json:"timeout"`
	MaxBodyBytes      int64    `toml:"max_body_bytes" json:"max_body_bytes"`
	MaxChars          int      `toml:"max_chars" json:"max_chars"`
	RequestsPerSecond float64  `toml:"requests_per_second" json:"requests_per_second"`
	UserAgent         string   `toml:"user_agent" json:"user_agent"`
}

// ImageConfig configures screenshot capture.
type ImageConfig struct {
	TempPath string `toml:"temp_path" json:"temp_path"`
	Command  string `toml:"command" json:"command"`
}

// AutocompleteConfig configures suggestions.
type AutocompleteConfig struct {
	MaxResults int `toml:"max_results" json:"max_results"`
}

// DispatchConfig bounds tag resolution.
type DispatchConfig struct {
	Timeout Duration `toml:"timeout" json:"timeout"`
}

// HistoryConfig configures conversation persistence.
type HistoryConfig struct {
	Persist          bool   `toml:"persist" json:"persist"`
	Dir              string `toml:"dir" json:"dir"`
	MaxConversations int    `toml:"max_conversations" json:"max_conversations"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `toml:"level" json:"level"`
	File        string `toml:"file" json:"file"`
	Development bool   `toml:"development" json:"development"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     ProviderOllama,
			OllamaURL:    "http://127.0.0.1:11434",
			Model:        "llama3.2",
			SystemPrompt: "You are a helpful assistant. Passages between BEGIN RESOURCE and END RESOURCE markers are context the user attached; RESOURCE:<name> in a message refers to them.",
			Timeout:      Duration(120 * time.Second),
		},
		Shortcuts: ShortcutsConfig{
			Dirs: []string{"~/.tagctx/shortcuts", "~/.config/tagctx"},
		},
		Files: FilesConfig{
			MaxContextBytes: 10 * 1024,
			MinSearchChars:  3,
			Extensions:      []string{".txt", ".md"},
			IndexDB:         "~/.tagctx/index.db",
			Watch:           true,
			CacheEntries:    100,
		},
		URL: URLConfig{
			Timeout:           Duration(15 * time.Second),
			MaxBodyBytes:      2 << 20,
			MaxChars:          50000,
			RequestsPerSecond: 2,
			UserAgent:         "Mozilla/5.0 (compatible; tagctx/1.0)",
		},
		Image: ImageConfig{
			Command: "screencapture",
		},
		Autocomplete: AutocompleteConfig{
			MaxResults: 10,
		},
		Dispatch: DispatchConfig{
			Timeout: Duration(60 * time.Second),
		},
		History: HistoryConfig{
			Persist:          true,
			Dir:              "~/.tagctx/conversations",
			MaxConversations: 100,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tagctx configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tagctx"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ExpandPath replaces a leading ~ with the home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are JSON; anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# tagctx configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderFake:
	default:
		add("llm.provider", fmt.Sprintf("must be %q or %q, got %q", ProviderOllama, ProviderFake, c.LLM.Provider))
	}
	if c.LLM.Provider == ProviderOllama {
		if u, err := url.Parse(c.LLM.OllamaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("llm.ollama_url", fmt.Sprintf("must be an http(s) URL, got %q", c.LLM.OllamaURL))
		}
		if c.LLM.Model == "" {
			add("llm.model", "must not be empty")
		}
	}
	if c.LLM.Timeout < 0 {
		add("llm.timeout", "must not be negative")
	}

	if c.Files.MaxContextBytes <= 0 || c.Files.MaxContextBytes > 10<<20 {
		add("files.max_context_bytes", "must be between 1 and 10485760")
	}
	if c.Files.MinSearchChars < 1 {
		add("files.min_search_chars", "must be at least 1")
	}
	for _, ext := range c.Files.Extensions {
		if !strings.HasPrefix(ext, ".") {
			add("files.extensions", fmt.Sprintf("%q must start with a dot", ext))
		}
	}
	if c.Files.CacheEntries < 0 {
		add("files.cache_entries", "must not be negative")
	}

	if c.URL.Timeout < 0 {
		add("url.timeout", "must not be negative")
	}
	if c.URL.MaxBodyBytes <= 0 {
		add("url.max_body_bytes", "must be positive")
	}
	if c.URL.MaxChars <= 0 {
		add("url.max_chars", "must be positive")
	}
	if c.URL.RequestsPerSecond <= 0 {
		add("url.requests_per_second", "must be positive")
	}

	if c.Autocomplete.MaxResults < 1 || c.Autocomplete.MaxResults > 50 {
		add("autocomplete.max_results", "must be between 1 and 50")
	}
	if c.Dispatch.Timeout < 0 {
		add("dispatch.timeout", "must not be negative")
	}
	if c.History.MaxConversations < 0 {
		add("history.max_conversations", "must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", fmt.Sprintf("must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that would otherwise fail validation.
func (c *Config) SetDefaults() {
	d := Default()

	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.OllamaURL == "" {
		c.LLM.OllamaURL = d.LLM.OllamaURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Files.MaxContextBytes == 0 {
		c.Files.MaxContextBytes = d.Files.MaxContextBytes
	}
	if c.Files.MinSearchChars == 0 {
		c.Files.MinSearchChars = d.Files.MinSearchChars
	}
	if len(c.Files.Extensions) == 0 {
		c.Files.Extensions = d.Files.Extensions
	}
	if c.URL.Timeout == 0 {
		c.URL.Timeout = d.URL.Timeout
	}
	if c.URL.MaxBodyBytes == 0 {
		c.URL.MaxBodyBytes = d.URL.MaxBodyBytes
	}
	if c.URL.MaxChars == 0 {
		c.URL.MaxChars = d.URL.MaxChars
	}
	if c.URL.RequestsPerSecond == 0 {
		c.URL.RequestsPerSecond = d.URL.RequestsPerSecond
	}
	if c.URL.UserAgent == "" {
		c.URL.UserAgent = d.URL.UserAgent
	}
	if c.Autocomplete.MaxResults == 0 {
		c.Autocomplete.MaxResults = d.Autocomplete.MaxResults
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TAGCTX_MODEL: overrides llm.model
//   - TAGCTX_OLLAMA_URL: overrides llm.ollama_url
//   - TAGCTX_PROVIDER: overrides llm.provider
//   - TAGCTX_LOG_LEVEL: overrides logging.level
//   - TAGCTX_SHORTCUT_DIRS: replaces shortcuts.dirs (list separated like PATH)
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("TAGCTX_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if u := os.Getenv("TAGCTX_OLLAMA_URL"); u != "" {
		c.LLM.OllamaURL = u
	}
	if provider := os.Getenv("TAGCTX_PROVIDER"); provider != "" {
		c.LLM.Provider = strings.ToLower(provider)
	}
	if level := os.Getenv("TAGCTX_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if dirs := os.Getenv("TAGCTX_SHORTCUT_DIRS"); dirs != "" {
		c.Shortcuts.Dirs = filepath.SplitList(dirs)
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "llm.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "llm.model").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks key through the struct tree by TOML tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]; tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Keys returns every configuration key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// String renders the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err.Error()
	}
	return buf.String()
}
