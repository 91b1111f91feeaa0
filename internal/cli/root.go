// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/logging"
	"github.com/semperai/circus-tui/internal/tokenizer"
)

const rootLongDesc string = `circus is a terminal playground for OpenAI-compatible completion APIs.

Run without a subcommand to open the full-screen playground: write a prompt,
tune the sampling parameters in the sidebar and submit with ctrl+s.

Credentials come from ~/.circus/config.toml, a .env file or the
OPENAI_API_KEY and OPENAI_BASE_URI environment variables.

Examples:
  circus
  circus complete --preset qa "Where is the Valley of Kings?"
  echo "Once upon a time" | circus complete --max-tokens 64
  circus repl --preset chat`

const rootShortDesc string = "Terminal playground for completion APIs"

// BuildInfo is stamped at link time and reported by `circus version`.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// app holds what every command needs once the config is loaded.
type app struct {
	info BuildInfo

	configPath string
	envFiles   []string
	debug      bool
	verbose    bool

	cfg        *config.Config
	catalog    *config.Catalog
	logger     *zap.Logger
	closeLog   func() error
	tokenizers *tokenizer.Registry

	// transport overrides the HTTP client in tests.
	transport controller.Transport
}

// Execute runs the command line against ctx.
func Execute(ctx context.Context, info BuildInfo, args []string) error {
	a := &app{info: info}
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "circus",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to a TOML or JSON config file (default ~/.circus/config.toml)")
	pf.StringSliceVar(&a.envFiles, "env-file", nil, "Load KEY=value files before reading the environment (default .env)")
	pf.BoolVar(&a.debug, "debug", false, "Log at debug level")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Mirror log output to stderr")

	cmd.AddCommand(
		newCompleteCmd(a),
		newREPLCmd(a),
		newPresetsCmd(a),
		newModelsCmd(a),
		newTokensCmd(a),
		newCurlCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// setup loads the environment, the config, the catalogue and the logger.
// The playground always logs to a file since it owns the terminal.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	logCfg := cfg.Logging
	if cmd == cmd.Root() {
		if a.verbose {
			return fmt.Errorf("--verbose cannot be used with the playground; set logging.file instead")
		}
		if logCfg.File == "" {
			if path, err := config.DefaultLogPath(); err == nil {
				logCfg.File = path
			}
		}
	}
	logger, closeLog, err := logging.New(logCfg, logging.Options{Debug: a.debug, Stderr: a.verbose})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	a.cfg = cfg
	a.catalog = cat
	a.logger = logger
	a.closeLog = closeLog
	a.tokenizers = tokenizer.NewRegistry()

	a.logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("base_uri", cfg.API.BaseURI),
		zap.Int("models", len(cat.Models)),
		zap.Int("presets", len(cat.Presets)))
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

// client returns the HTTP transport configured from the api section.
func (a *app) client() *completion.Client {
	return completion.NewClient(a.logger.Named("completion")).
		WithMaxRetries(a.cfg.API.MaxRetries).
		WithRequestsPerMinute(a.cfg.API.RequestsPerMinute)
}

func (a *app) newController() *controller.Controller {
	t := a.transport
	if t == nil {
		t = a.client()
	}
	return controller.New(t, controller.Options{
		Timeout:    a.cfg.API.Timeout(),
		StrictDone: a.cfg.API.StrictDone,
		Logger:     a.logger,
	})
}

func (a *app) credentials() completion.Credentials {
	return completion.Credentials{APIKey: a.cfg.API.APIKey, BaseURI: a.cfg.API.BaseURI}
}

// skipSetup is installed on commands that must work without a valid config.
func skipSetup(*cobra.Command, []string) error { return nil }
