// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Ollama defaults.
const (
	DefaultOllamaURL = "http://127.0.0.1:11434"
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 120 * time.Second
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

type modelInfo struct {
	Name string `json:"name"`
}

type listModelsResponse struct {
	Models []modelInfo `json:"models"`
}

type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// CONNECTOR
// =============================================================================

// OllamaConfig configures the Ollama connector.
type OllamaConfig struct {
	// BaseURL is the server address (default: http://127.0.0.1:11434).
	BaseURL string

	// Timeout bounds a whole chat request (default: 120s).
	Timeout time.Duration

	Models Models

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Ollama is a Connector backed by a local Ollama server. It is safe for
// concurrent use.
type Ollama struct {
	baseURL    string
	models     Models
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllama creates an Ollama connector, filling in defaults for zero
// values.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Models.Normal == "" {
		cfg.Models.Normal = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		models:     cfg.Models,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Name implements Connector.
func (o *Ollama) Name() string { return "ollama" }

// Models returns the configured models.
func (o *Ollama) Models() Models { return o.models }

// Generate implements Connector with a non-streaming /api/chat call.
func (o *Ollama) Generate(ctx context.Context, p Prompt) (Reply, error) {
	model := o.models.For(p.Speed)
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: buildMessages(p),
		Stream:   false,
	})
	if err != nil {
		return Reply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Reply{}, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Reply{}, &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + model}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return Reply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: apiErr.Error}
		}
		return Reply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "chat request failed: " + resp.Status}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Reply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	reply := Reply{
		Text:             strings.TrimSpace(result.Message.Content),
		Model:            result.Model,
		PromptTokens:     result.PromptEvalCount,
		CompletionTokens: result.EvalCount,
		Duration:         time.Since(start),
	}
	if reply.Model == "" {
		reply.Model = model
	}

	o.logger.Debug("chat completed",
		zap.String("model", reply.Model),
		zap.Int("prompt_tokens", reply.PromptTokens),
		zap.Int("completion_tokens", reply.CompletionTokens),
		zap.Duration("elapsed", reply.Duration))
	return reply, nil
}

// CheckRunning verifies that the server is reachable.
func (o *Ollama) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{Type: ErrTypeConnection, Message: "unexpected status from Ollama: " + resp.Status}
	}
	return nil
}

// ListModels returns the names of the locally available models.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to list models: " + resp.Status}
	}

	var result listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// buildMessages lays a prompt out as chat messages: one system message
// carrying the instruction and context passages, then the history. The
// image rides on the last user message.
func buildMessages(p Prompt) []chatMessage {
	var system []string
	if s := strings.TrimSpace(p.System); s != "" {
		system = append(system, s)
	}
	if c := strings.TrimSpace(p.Context); c != "" {
		system = append(system, c)
	}

	msgs := make([]chatMessage, 0, len(p.History)+1)
	if len(system) > 0 {
		msgs = append(msgs, chatMessage{Role: "system", Content: strings.Join(system, "\n\n")})
	}
	for _, m := range p.History {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	if len(p.Image) > 0 {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == "user" {
				msgs[i].Images = []string{base64.StdEncoding.EncodeToString(p.Image)}
				break
			}
		}
	}
	return msgs
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
}
