// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires tag resolution, shortcuts, completion and the model
// connector into a single submission pipeline.
//
// A submission runs in this order:
//
//	trim -> shortcut expansion -> tag dispatch -> prompt -> model -> history
//
// Handler failures abort the submission before the model is called and
// leave the chat entries untouched.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/complete"
	"github.com/jeranaias/tagctx/internal/config"
	"github.com/jeranaias/tagctx/internal/conversation"
	"github.com/jeranaias/tagctx/internal/handlers"
	"github.com/jeranaias/tagctx/internal/index"
	"github.com/jeranaias/tagctx/internal/llm"
	"github.com/jeranaias/tagctx/internal/macro"
	"github.com/jeranaias/tagctx/internal/plugin"
	"github.com/jeranaias/tagctx/internal/shortcuts"
	"github.com/jeranaias/tagctx/internal/storage"
)

// Trigger marks clipboard text that should be submitted by the watcher.
const Trigger = "@@"

// ErrEmptyInput is returned when a submission is blank after trimming.
var ErrEmptyInput = errors.New("empty input")

// Result is the outcome of a successful submission.
type Result struct {
	Request   *plugin.Request
	Reply     llm.Reply
	User      *conversation.Entry
	Assistant *conversation.Entry
}

// Option customizes an App.
type Option func(*App)

// WithConnector replaces the connector chosen by the configuration.
func WithConnector(c llm.Connector) Option {
	return func(a *App) { a.connector = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithClipboard sets the clipboard the @clipboard handler reads.
func WithClipboard(r handlers.ClipboardReader) Option {
	return func(a *App) { a.clipboard = r }
}

// WithCapturer sets the screenshot source for @selection and @window.
func WithCapturer(c handlers.Capturer) Option {
	return func(a *App) { a.capturer = c }
}

// WithHandlers registers extra handlers after the built-in ones.
func WithHandlers(hs ...plugin.Handler) Option {
	return func(a *App) { a.extra = append(a.extra, hs...) }
}

// WithStore sets the conversation store. It takes precedence over the
// history settings of the configuration.
func WithStore(s *storage.ConversationStore) Option {
	return func(a *App) { a.store = s }
}

// App owns the state of one tagctx session.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	clipboard handlers.ClipboardReader
	capturer  handlers.Capturer
	extra     []plugin.Handler

	registry    *plugin.Registry
	dispatcher  *plugin.Dispatcher
	coordinator *complete.Coordinator
	expander    *macro.Expander
	loader      *shortcuts.Loader
	index       *index.Index
	fileCache   *handlers.FileCache

	connector llm.Connector
	models    llm.Models
	store     *storage.ConversationStore

	mu      sync.Mutex
	history *conversation.History
}

// New builds an App from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		cfg:     cfg,
		history: conversation.NewHistory(),
		models: llm.Models{
			Normal: cfg.LLM.Model,
			Fast:   cfg.LLM.FastModel,
			Slow:   cfg.LLM.SlowModel,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	a.fileCache = handlers.NewFileCache(cfg.Files.CacheEntries, 0)
	a.openIndex()

	deps := handlers.Deps{
		Clipboard: a.clipboard,
		Capturer:  a.capturer,
		File: handlers.FileOptions{
			MaxContextBytes: cfg.Files.MaxContextBytes,
			MinSearchChars:  cfg.Files.MinSearchChars,
			Cache:           a.fileCache,
		},
		URL: handlers.URLOptions{
			Timeout:           cfg.URL.Timeout.Std(),
			MaxBodyBytes:      cfg.URL.MaxBodyBytes,
			MaxChars:          cfg.URL.MaxChars,
			UserAgent:         cfg.URL.UserAgent,
			RequestsPerSecond: cfg.URL.RequestsPerSecond,
		},
		Logger: a.logger.Named("handlers"),
	}
	if a.index != nil {
		deps.File.Index = a.index
	}
	if deps.Capturer == nil {
		deps.Capturer = handlers.ScreenCapture{
			Command: cfg.Image.Command,
			TempDir: config.ExpandPath(cfg.Image.TempPath),
		}
	}

	all := append(handlers.Builtin(deps), a.extra...)
	registry, err := plugin.NewRegistry(plugin.WithHandlers(all...))
	if err != nil {
		a.closeIndex()
		return nil, fmt.Errorf("register handlers: %w", err)
	}
	a.registry = registry
	a.dispatcher = plugin.NewDispatcher(registry, plugin.WithLogger(a.logger.Named("dispatch")))
	a.expander = macro.NewExpander()
	a.coordinator = complete.NewCoordinator(registry,
		complete.WithLogger(a.logger.Named("complete")),
		complete.WithStatic(a.expander.Triggers))
	a.loader = shortcuts.NewLoader(a.expander, registry, a.logger.Named("shortcuts"))

	if a.connector == nil {
		a.connector = a.newConnector()
	}

	if a.store == nil && cfg.History.Persist {
		store, err := storage.NewConversationStoreWithDir(config.ExpandPath(cfg.History.Dir))
		if err != nil {
			a.logger.Warn("conversation history disabled", zap.Error(err))
		} else {
			store.MaxConversations = cfg.History.MaxConversations
			a.store = store
		}
	}

	return a, nil
}

// openIndex opens the file index named by the configuration. Failure only
// disables index search.
func (a *App) openIndex() {
	if a.cfg.Files.IndexDB == "" {
		return
	}
	idxCfg := index.DefaultConfig(config.ExpandPath(a.cfg.Files.IndexDB))
	if len(a.cfg.Files.Extensions) > 0 {
		idxCfg.Extensions = a.cfg.Files.Extensions
	}
	idxCfg.Logger = a.logger.Named("index")
	idxCfg.OnChange = a.fileCache.Invalidate

	idx, err := index.Open(idxCfg)
	if err != nil {
		a.logger.Warn("file index disabled", zap.Error(err))
		return
	}
	a.index = idx
}

func (a *App) newConnector() llm.Connector {
	switch a.cfg.LLM.Provider {
	case config.ProviderFake:
		return &llm.Fake{}
	default:
		return llm.NewOllama(llm.OllamaConfig{
			BaseURL: a.cfg.LLM.OllamaURL,
			Timeout: a.cfg.LLM.Timeout.Std(),
			Models:  a.models,
			Logger:  a.logger.Named("ollama"),
		})
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit resolves the tags in text, sends the prompt to the model and
// records both turns in the current conversation.
//
// A handler failure returns a *plugin.AbortError. Neither an abort nor a
// model error adds chat entries, though blocks added before the failure
// remain.
func (a *App) Submit(ctx context.Context, text string) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	conv := a.history.Current()
	req, err := a.expand(ctx, text, conv)
	if err != nil {
		return nil, err
	}

	prompt := a.prompt(conv, req)
	reply, err := a.connector.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("generation failed", zap.String("connector", a.connector.Name()), zap.Error(err))
		return nil, err
	}

	user, err := conv.AddChatEntry(conversation.RoleUser, strings.TrimSpace(text), userText(req), req.Refs)
	if err != nil {
		return nil, err
	}
	assistant, err := conv.AddChatEntry(conversation.RoleAssistant, reply.Text, reply.Text, nil)
	if err != nil {
		return nil, err
	}

	a.persist(conv)
	a.logger.Debug("submission complete",
		zap.String("conversation", conv.ID),
		zap.String("model", reply.Model),
		zap.Int("refs", len(req.Refs)),
		zap.Duration("duration", reply.Duration))

	return &Result{Request: req, Reply: reply, User: user, Assistant: assistant}, nil
}

// Expand runs shortcut expansion and tag dispatch against the current
// conversation without calling the model. Blocks added by handlers are kept.
func (a *App) Expand(ctx context.Context, text string) (*plugin.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expand(ctx, text, a.history.Current())
}

// HandleTrigger submits text when it starts with Trigger and returns the
// reply. ok is false when text is not a trigger.
func (a *App) HandleTrigger(ctx context.Context, text string) (reply string, ok bool, err error) {
	if !strings.HasPrefix(text, Trigger) {
		return "", false, nil
	}
	res, err := a.Submit(ctx, strings.TrimPrefix(text, Trigger))
	if err != nil {
		return "", true, err
	}
	return res.Reply.Text, true, nil
}

func (a *App) expand(ctx context.Context, text string, conv *conversation.Conversation) (*plugin.Request, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	req := plugin.NewRequest(a.expander.ExpandAll(text))

	if timeout := a.cfg.Dispatch.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := a.dispatcher.Dispatch(ctx, req, conv); err != nil {
		a.logger.Info("request aborted", zap.Error(err))
		return req, err
	}
	return req, nil
}

// prompt assembles what the model sees: the context passages, the chat so
// far and the resolved user turn.
func (a *App) prompt(conv *conversation.Conversation, req *plugin.Request) llm.Prompt {
	history := make([]llm.Message, 0, len(conv.Entries)+1)
	for _, e := range conv.Entries {
		history = append(history, llm.Message{Role: string(e.Role), Content: e.Text(true)})
	}
	history = append(history, llm.Message{Role: string(conversation.RoleUser), Content: userText(req)})

	p := llm.Prompt{
		System:  a.cfg.LLM.SystemPrompt,
		Context: conv.ContextHistoryText(),
		History: history,
		Speed:   conv.Speed,
	}
	if req.NeedsImage {
		if img, ok := conv.LastImage(); ok {
			p.Image = img
		}
	}
	return p
}

func userText(req *plugin.Request) string {
	return strings.TrimSpace(req.Working)
}

func (a *App) persist(conv *conversation.Conversation) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(conv, a.models.For(conv.Speed)); err != nil {
		a.logger.Warn("save conversation failed", zap.String("id", conv.ID), zap.Error(err))
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Conversation returns the current conversation.
func (a *App) Conversation() *conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Current()
}

// History returns every conversation of the session.
func (a *App) History() []*conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.All()
}

// NewConversation starts a fresh conversation and makes it current.
func (a *App) NewConversation() *conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.AddConversation()
}

// ResetConversation clears the current conversation in place.
func (a *App) ResetConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Current().Reset()
}

// SwitchConversation makes the n-th conversation of the session current,
// counting from 1 in History order.
func (a *App) SwitchConversation(n int) (*conversation.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	all := a.history.All()
	if n < 1 || n > len(all) {
		return nil, fmt.Errorf("switch to %d: %w", n, conversation.ErrUnknownConversation)
	}
	c := all[n-1]
	if err := a.history.Switch(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// SetSpeed changes the sticky speed of the current conversation.
func (a *App) SetSpeed(s conversation.Speed) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Current().SetSpeed(s)
}

// Resume loads a saved conversation by list number, ID or ID prefix and
// makes it current.
func (a *App) Resume(ref string) (*conversation.Conversation, error) {
	if a.store == nil {
		return nil, storage.ErrConversationNotFound
	}
	stored, err := a.store.Resolve(ref)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Restore(stored.Conversation)
	return stored.Conversation, nil
}

// =============================================================================
// SHORTCUTS AND COMPLETION
// =============================================================================

// LoadShortcuts reads the configured shortcut directories. Index roots added
// by shortcut files are watched when watching is enabled.
func (a *App) LoadShortcuts() shortcuts.Report {
	dirs := make([]string, 0, len(a.cfg.Shortcuts.Dirs))
	for _, d := range a.cfg.Shortcuts.Dirs {
		dirs = append(dirs, config.ExpandPath(d))
	}
	rep := a.loader.LoadDirs(dirs)
	a.logger.Debug("shortcuts loaded",
		zap.Int("files", rep.Files),
		zap.Int("shortcuts", rep.Shortcuts),
		zap.Int("config_tags", rep.ConfigTags),
		zap.Int("skipped", rep.Skipped))

	if a.index != nil && a.cfg.Files.Watch {
		if err := a.index.Watch(); err != nil {
			a.logger.Warn("index watch failed", zap.Error(err))
		}
	}
	return rep
}

// Suggest returns completions for a tag fragment.
func (a *App) Suggest(ctx context.Context, fragment string) []complete.Suggestion {
	return a.coordinator.Suggest(ctx, fragment, a.cfg.Autocomplete.MaxResults)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the handler registry.
func (a *App) Registry() *plugin.Registry { return a.registry }

// Expander returns the shortcut expander.
func (a *App) Expander() *macro.Expander { return a.expander }

// Connector returns the model connector.
func (a *App) Connector() llm.Connector { return a.connector }

// Models returns the speed to model mapping.
func (a *App) Models() llm.Models { return a.models }

// Store returns the conversation store, or nil when history is disabled.
func (a *App) Store() *storage.ConversationStore { return a.store }

// Index returns the file index, or nil when it is disabled.
func (a *App) Index() *index.Index { return a.index }

// Close releases the file index and flushes the logger.
func (a *App) Close() error {
	stats := a.fileCache.Stats()
	a.logger.Debug("file cache",
		zap.Int("hits", stats.Hits),
		zap.Int("misses", stats.Misses),
		zap.Int("entries", stats.EntryCount),
		zap.Float64("hit_rate", stats.HitRate))

	err := a.closeIndex()
	_ = a.logger.Sync()
	return err
}

func (a *App) closeIndex() error {
	if a.index == nil {
		return nil
	}
	return a.index.Close()
}
