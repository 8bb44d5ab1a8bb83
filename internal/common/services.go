package common

import (
	"context"
	stderrors "errors"
	"fmt"

	"smartats/internal/ai"
	"smartats/internal/ats"
	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/extract"
	"smartats/internal/observability"
	"smartats/internal/prompt"
)

// Services bundles the long-lived collaborators shared by the CLI and the server
type Services struct {
	Analyzer      *ats.Analyzer
	Gateway       ai.Gateway
	Prompt        *prompt.Builder
	Observability *observability.ObservabilityManager

	watcher *prompt.Watcher
	logger  *errors.Logger
}

// NewServices wires the analyzer from configuration. A watcher is started
// for the prompt file when ai.watchPromptFile is set.
func NewServices(ctx context.Context, cfg *config.Config, version string, logger *errors.Logger) (*Services, error) {
	obs, err := observability.NewObservabilityManager(cfg.Observability, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	builder, err := prompt.NewBuilder(cfg.AI.PromptTemplate)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid prompt template", err)
	}

	gateway, err := ai.NewGateway(ctx, cfg.AI, logger)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	if g, ok := gateway.(*ai.GeminiGateway); ok && cfg.Observability.HealthCheck.AIModelCheckTimeout > 0 {
		g.SetModelCheckTimeout(cfg.Observability.HealthCheck.AIModelCheckTimeout)
	}

	s := &Services{
		Gateway:       gateway,
		Prompt:        builder,
		Observability: obs,
		logger:        logger,
	}

	if cfg.AI.WatchPromptFile && cfg.AI.PromptFile != "" {
		s.watcher = prompt.NewWatcher(cfg.AI.PromptFile, builder, 0, logger)
		if err := s.watcher.Start(); err != nil {
			logger.LogError(err, "Failed to start prompt watcher; template changes will need a restart",
				"file", cfg.AI.PromptFile)
			s.watcher = nil
		}
	}

	s.Analyzer = ats.NewAnalyzer(
		extract.NewPDFExtractor(logger),
		builder,
		gateway,
		logger,
		ats.Options{
			MaxFileSize: cfg.App.MaxFileSize,
			MaxJDLength: cfg.App.MaxJDLength,
			Metrics:     obs.GetMetrics(),
		},
	)

	logger.Info("Analyzer ready",
		"provider", cfg.AI.Provider,
		"model", gateway.Model(),
		"prompt_watch", s.watcher != nil)
	return s, nil
}

// Close releases the watcher, the gateway and the telemetry pipelines
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("prompt watcher: %w", err))
		}
	}
	if err := s.Gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}
	if err := s.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}
	return stderrors.Join(errs...)
}
