// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, int64(10*1024), cfg.Files.MaxContextBytes)
	assert.Equal(t, 3, cfg.Files.MinSearchChars)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Files.Extensions)
	assert.Equal(t, 10, cfg.Autocomplete.MaxResults)
	assert.Equal(t, 15*time.Second, cfg.URL.Timeout.Std())
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[llm]
provider = "fake"
model = "tiny"
fast_model = "tinier"
timeout = "45s"

[shortcuts]
dirs = ["/etc/tagctx"]

[files]
max_context_bytes = 2048
watch = false

[url]
requests_per_second = 0.5
`)
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderFake, cfg.LLM.Provider)
	assert.Equal(t, "tiny", cfg.LLM.Model)
	assert.Equal(t, "tinier", cfg.LLM.FastModel)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, []string{"/etc/tagctx"}, cfg.Shortcuts.Dirs)
	assert.Equal(t, int64(2048), cfg.Files.MaxContextBytes)
	assert.False(t, cfg.Files.Watch)
	assert.Equal(t, 0.5, cfg.URL.RequestsPerSecond)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, "http://127.0.0.1:11434", cfg.LLM.OllamaURL)
	assert.Equal(t, 50000, cfg.URL.MaxChars)
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"llm": {"model": "from-json", "timeout": "1m"}, "autocomplete": {"max_results": 5}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-json", cfg.LLM.Model)
	assert.Equal(t, time.Minute, cfg.LLM.Timeout.Std())
	assert.Equal(t, 5, cfg.Autocomplete.MaxResults)
}

func TestLoadFromPath_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad toml", "c.toml", "[llm\nmodel = "},
		{"bad duration", "c.toml", "[llm]\ntimeout = \"soon\""},
		{"bad json", "c.json", "{"},
		{"invalid values", "c.toml", "[llm]\nprovider = \"openai\""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromPath(writeFile(t, tc.file, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_FallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.Model, cfg.LLM.Model)
}

func TestLoad_PrefersTOMLOverJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".tagctx")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"llm":{"model":"json"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LLM.Model)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[llm]\nmodel = \"toml\"\n"), 0600))
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "toml", cfg.LLM.Model)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("TAGCTX_MODEL", "env-model")
	t.Setenv("TAGCTX_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("TAGCTX_PROVIDER", "FAKE")
	t.Setenv("TAGCTX_LOG_LEVEL", "DEBUG")
	t.Setenv("TAGCTX_SHORTCUT_DIRS", strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)))

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.OllamaURL)
	assert.Equal(t, ProviderFake, cfg.LLM.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Shortcuts.Dirs)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "openai" }, "llm.provider"},
		{"ollama url", func(c *Config) { c.LLM.OllamaURL = "localhost:11434" }, "llm.ollama_url"},
		{"empty model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"context bytes", func(c *Config) { c.Files.MaxContextBytes = 0 }, "files.max_context_bytes"},
		{"min search", func(c *Config) { c.Files.MinSearchChars = 0 }, "files.min_search_chars"},
		{"extension dot", func(c *Config) { c.Files.Extensions = []string{"md"} }, "files.extensions"},
		{"rps", func(c *Config) { c.URL.RequestsPerSecond = -1 }, "url.requests_per_second"},
		{"max results", func(c *Config) { c.Autocomplete.MaxResults = 100 }, "autocomplete.max_results"},
		{"dispatch timeout", func(c *Config) { c.Dispatch.Timeout = -1 }, "dispatch.timeout"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "err = %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}

	fake := Default()
	fake.LLM.Provider = ProviderFake
	fake.LLM.OllamaURL = ""
	assert.NoError(t, fake.Validate(), "fake provider ignores ollama settings")
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Default().LLM.Timeout, cfg.LLM.Timeout)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("llm.model", "mistral"))
	require.NoError(t, cfg.Set("files.max_context_bytes", "4096"))
	require.NoError(t, cfg.Set("files.watch", "false"))
	require.NoError(t, cfg.Set("files.extensions", ".md, .org"))
	require.NoError(t, cfg.Set("url.requests_per_second", "1.5"))
	require.NoError(t, cfg.Set("dispatch.timeout", "5s"))
	require.NoError(t, cfg.Set("autocomplete.max_results", 7))

	v, err := cfg.Get("llm.model")
	require.NoError(t, err)
	assert.Equal(t, "mistral", v)
	assert.Equal(t, int64(4096), cfg.Files.MaxContextBytes)
	assert.False(t, cfg.Files.Watch)
	assert.Equal(t, []string{".md", ".org"}, cfg.Files.Extensions)
	assert.Equal(t, 1.5, cfg.URL.RequestsPerSecond)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.Timeout.Std())
	assert.Equal(t, 7, cfg.Autocomplete.MaxResults)

	assert.Error(t, cfg.Set("llm.nope", "x"))
	assert.Error(t, cfg.Set("llm.model.deeper", "x"))
	assert.Error(t, cfg.Set("files.watch", "maybe"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "llm.model")
	assert.Contains(t, keys, "history.max_conversations")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.LLM.Model = "saved"
	cfg.Dispatch.Timeout = Duration(3 * time.Second)

	tomlPath := filepath.Join(dir, "sub", "config.toml")
	require.NoError(t, SaveTOML(cfg, tomlPath))
	info, err := os.Stat(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(tomlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `timeout = "3s"`)

	loaded, err := LoadFromPath(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.LLM.Model)
	assert.Equal(t, 3*time.Second, loaded.Dispatch.Timeout.Std())

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	loaded, err = LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.LLM.Model)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}
