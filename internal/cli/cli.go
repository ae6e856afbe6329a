// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/tagctx/internal/app"
	"github.com/jeranaias/tagctx/internal/config"
	"github.com/jeranaias/tagctx/internal/logging"
)

// Version info, set at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	fake       bool
	model      string
	noColor    bool
}

// runner carries the global options into the command closures.
type runner struct {
	opts globalOptions

	// appOptions are appended when building the App. Tests use them to
	// inject fakes.
	appOptions []app.Option
}

// NewRootCmd builds the tagctx command tree.
func NewRootCmd(appOpts ...app.Option) *cobra.Command {
	r := &runner{appOptions: appOpts}

	root := &cobra.Command{
		Use:   "tagctx",
		Short: "Resolve @tags into context and ask a local model",
		Long: `tagctx turns @tags in a message into context for a language model.

  @clipboard            the clipboard text
  @/path or @~/path     a file (quote paths with spaces: @"~/My Notes.md")
  @https://...          the text of a web page
  @selection, @window   a screenshot
  @fast, @slow, @think  the model speed for this conversation

Shortcuts from ~/.tagctx/shortcuts/*.toml are expanded before tags.

Examples:
  tagctx ask "Summarize @clipboard"
  tagctx chat
  tagctx expand "Compare @~/a.md with @~/b.md"
  tagctx history list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if r.opts.noColor {
				ForceColorsEnabled(false)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&r.opts.configPath, "config", "", "config file (default ~/.tagctx/config.toml)")
	flags.BoolVar(&r.opts.debug, "debug", false, "debug logging to stderr")
	flags.BoolVar(&r.opts.fake, "fake", false, "use the offline fake model")
	flags.StringVarP(&r.opts.model, "model", "m", "", "model for normal speed (overrides config)")
	flags.BoolVar(&r.opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		r.newAskCmd(),
		r.newChatCmd(),
		r.newExpandCmd(),
		r.newScanCmd(),
		r.newCompleteCmd(),
		r.newShortcutsCmd(),
		r.newIndexCmd(),
		r.newHistoryCmd(),
		r.newContextCmd(),
		r.newConfigCmd(),
		r.newWatchCmd(),
		r.newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with signal handling and returns the
// process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(os.Stderr, err)
		return ExitCodeFor(err)
	}
	return ExitSuccess
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig reads the config file named by --config, or the default one,
// and applies the global flags.
func (r *runner) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if r.opts.configPath != "" {
		cfg, err = config.LoadFromPath(r.opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if r.opts.fake {
		cfg.LLM.Provider = config.ProviderFake
	}
	if r.opts.model != "" {
		cfg.LLM.Model = r.opts.model
	}
	if r.opts.debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
		cfg.Logging.File = ""
	}
	return cfg, nil
}

// openApp loads the configuration, builds the App and loads shortcuts. The
// caller must Close it.
func (r *runner) openApp() (*app.App, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		File:        config.ExpandPath(cfg.Logging.File),
	})
	if err != nil {
		return nil, err
	}

	opts := append([]app.Option{app.WithLogger(logger)}, r.appOptions...)
	a, err := app.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	rep := a.LoadShortcuts()
	logger.Debug("session ready",
		zap.String("connector", a.Connector().Name()),
		zap.Int("handlers", a.Registry().Len()),
		zap.Int("shortcuts", rep.Shortcuts))
	return a, nil
}

// withApp runs fn with a freshly opened App.
func (r *runner) withApp(fn func(a *app.App) error) error {
	a, err := r.openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "tagctx %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
