package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/export"
	"github.com/joseph-ayodele/billguard/internal/llm"
	"github.com/joseph-ayodele/billguard/internal/llm/gemini"
	"github.com/joseph-ayodele/billguard/internal/llm/openai"
	repo "github.com/joseph-ayodele/billguard/internal/repository"
	"github.com/joseph-ayodele/billguard/internal/workflow"
)

// app is everything a local command needs, opened against the configured store.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	slot     repo.Slot
	bills    repo.BillRepository
	analyzer llm.BillAnalyzer
	exporter *export.Service
}

func newLogger(level slog.Level) *slog.Logger {
	// Remove time and level attributes, keep message and other variables
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// openApp loads config from the environment. needLLM additionally requires provider credentials.
func openApp(ctx context.Context, opts *rootOptions, needLLM bool) (*app, error) {
	cfg := common.LoadConfig()
	if opts.store != "" {
		cfg.Store.Driver = opts.store
	}
	if opts.dsn != "" {
		cfg.Store.DSN = opts.dsn
	}
	if opts.provider != "" {
		cfg.LLM.Provider = opts.provider
	}
	level := cfg.LogLevel
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(level)
	slog.SetDefault(logger)

	if needLLM {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	slot, err := repo.OpenSlot(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	bills := repo.NewBillRepository(slot, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		slot:     slot,
		bills:    bills,
		exporter: export.NewService(bills, logger),
	}
	if needLLM {
		analyzer, err := llm.NewAnalyzer(newGenerator(cfg.LLM, logger), logger, llm.WithTemperature(cfg.LLM.Temperature))
		if err != nil {
			_ = slot.Close()
			return nil, err
		}
		a.analyzer = analyzer
	}
	return a, nil
}

// controller returns a workflow controller over the shared store, with history loaded.
func (a *app) controller(ctx context.Context) *workflow.Controller {
	ctrl := workflow.NewController(a.analyzer, a.bills, a.logger, workflow.WithConfig(a.cfg.Workflow))
	ctrl.Load(ctx)
	return ctrl
}

func (a *app) Close() {
	if err := a.slot.Close(); err != nil {
		a.logger.Warn("store close failed", "error", err)
	}
}

func newGenerator(cfg common.LLMConfig, logger *slog.Logger) llm.Generator {
	if cfg.Provider == common.ProviderOpenAI {
		return openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			ReasoningModel: cfg.OpenAIReasoningModel,
			Timeout:        cfg.Timeout,
		}, logger)
	}
	return gemini.NewClient(gemini.Config{
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		Model:          cfg.GeminiModel,
		ReasoningModel: cfg.GeminiReasoningModel,
		Timeout:        cfg.Timeout,
	}, logger)
}
