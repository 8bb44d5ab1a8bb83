package ai

import (
	"context"
	"fmt"

	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/types"
)

// Reply is the raw text returned by one model call
type Reply struct {
	Text       string
	Model      string
	TokenUsage *types.TokenUsage
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// Gateway sends a finished prompt to a generative model.
// Generate makes exactly one call; failures are *errors.AppError of type ai.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (*Reply, error)
	Model() string
	GetModelInfo(ctx context.Context) *ModelInfo
	Stats() map[string]any
	Close() error
}

// NewGateway builds the gateway named by cfg.Provider.
// Without an API key it returns a gateway that rejects every call.
func NewGateway(ctx context.Context, cfg config.AIConfig, logger *errors.Logger) (Gateway, error) {
	logger.Debug("Initializing AI gateway",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"circuit_breaker", cfg.CircuitBreaker.Enabled)

	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			logger.Warn("No Gemini API key configured; analyses will fail until one is provided")
			return NewDisabledGateway(cfg.Model), nil
		}
		gw, err := NewGeminiGateway(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// DisabledGateway stands in when no credentials are configured
type DisabledGateway struct {
	model string
}

var _ Gateway = (*DisabledGateway)(nil)

// NewDisabledGateway creates a gateway that fails every call with MISSING_API_KEY
func NewDisabledGateway(model string) *DisabledGateway {
	return &DisabledGateway{model: model}
}

// Generate always fails
func (d *DisabledGateway) Generate(context.Context, string) (*Reply, error) {
	return nil, errors.NewAIError(errors.ErrCodeMissingAPIKey,
		"no API key configured (set GOOGLE_API_KEY or SMARTATS_AI_APIKEY)", nil)
}

// Model returns the configured model name
func (d *DisabledGateway) Model() string { return d.model }

// GetModelInfo reports the model as unavailable
func (d *DisabledGateway) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: d.model, Available: false, Error: "no API key configured"}
}

// Stats reports that the gateway is disabled
func (d *DisabledGateway) Stats() map[string]any {
	return map[string]any{"enabled": false, "reason": "missing api key"}
}

// Close is a no-op
func (d *DisabledGateway) Close() error { return nil }
