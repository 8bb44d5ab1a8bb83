package ai

import (
	"context"
	"fmt"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const defaultModelCheckTimeout = 10 * time.Second

// modelsAPI is the part of *genai.Models the gateway calls
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiGateway implements Gateway for Google Gemini
type GeminiGateway struct {
	models            modelsAPI
	config            config.AIConfig
	breaker           *CircuitBreaker[*genai.GenerateContentResponse]
	modelCheckTimeout time.Duration
	logger            *errors.Logger
}

// Ensure GeminiGateway implements Gateway
var _ Gateway = (*GeminiGateway)(nil)

// NewGeminiGateway creates a Gemini client for cfg
func NewGeminiGateway(ctx context.Context, cfg config.AIConfig, logger *errors.Logger) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}
	return newGeminiGateway(client.Models, cfg, logger), nil
}

func newGeminiGateway(models modelsAPI, cfg config.AIConfig, logger *errors.Logger) *GeminiGateway {
	return &GeminiGateway{
		models:            models,
		config:            cfg,
		breaker:           NewCircuitBreaker[*genai.GenerateContentResponse]("gemini-"+cfg.Model, cfg.CircuitBreaker, logger),
		modelCheckTimeout: defaultModelCheckTimeout,
		logger:            logger,
	}
}

// SetModelCheckTimeout bounds GetModelInfo calls
func (g *GeminiGateway) SetModelCheckTimeout(d time.Duration) {
	if d > 0 {
		g.modelCheckTimeout = d
	}
}

// Generate sends prompt once and returns the reply text. There are no retries.
func (g *GeminiGateway) Generate(ctx context.Context, prompt string) (*Reply, error) {
	tracer := otel.Tracer("smartats.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(g.config.Temperature)),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), g.buildConfig())
	})
	if err != nil {
		appErr := classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Code)
		span.SetAttributes(attribute.Bool("success", false))
		g.logger.LogError(appErr, "Gemini call failed", "model", g.config.Model)
		return nil, appErr
	}

	if err := checkCandidates(result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Code)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, err
	}

	reply := &Reply{
		Text:       result.Text(),
		Model:      g.config.Model,
		TokenUsage: extractTokenUsage(result),
	}
	if result.ModelVersion != "" {
		reply.Model = result.ModelVersion
	}

	if reply.TokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", reply.TokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", reply.TokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", reply.TokenUsage.TotalTokens),
		)
	}
	span.SetAttributes(
		attribute.Int("output.reply_length", len(reply.Text)),
		attribute.Bool("success", true),
	)

	g.logger.Debug("Gemini call completed", "model", reply.Model, "reply_length", len(reply.Text))
	return reply, nil
}

// checkCandidates rejects responses that carry no candidate at all,
// which is how Gemini reports a blocked prompt
func checkCandidates(result *genai.GenerateContentResponse) *errors.AppError {
	if result != nil && len(result.Candidates) > 0 {
		return nil
	}
	msg := "AI service returned no candidates"
	if result != nil && result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		msg = fmt.Sprintf("%s (blocked: %s)", msg, result.PromptFeedback.BlockReason)
	}
	return errors.NewAIError(errors.ErrCodeAIEmptyResponse, msg, nil)
}

// buildConfig asks for JSON shaped like the evaluator template's example
func (g *GeminiGateway) buildConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				types.KeyJDMatch: {Type: genai.TypeString},
				types.KeyMissingKeywords: {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
				types.KeyProfileSummary: {Type: genai.TypeString},
			},
			Required:         []string{types.KeyJDMatch, types.KeyMissingKeywords, types.KeyProfileSummary},
			PropertyOrdering: []string{types.KeyJDMatch, types.KeyMissingKeywords, types.KeyProfileSummary},
		},
	}

	temperature := g.config.Temperature
	cfg.Temperature = &temperature

	return cfg
}

// Model returns the configured model name
func (g *GeminiGateway) Model() string {
	return g.config.Model
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiGateway) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed", "model", g.config.Model, "error", err.Error())
		return info
	}

	info.Available = true
	if model != nil {
		info.DisplayName = model.DisplayName
		info.Version = model.Version
	}

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"display_name", info.DisplayName,
		"version", info.Version)
	return info
}

// Stats returns circuit breaker statistics
func (g *GeminiGateway) Stats() map[string]any {
	return map[string]any{
		"enabled":         true,
		"provider":        "gemini",
		"model":           g.config.Model,
		"circuit_breaker": g.breaker.Stats(),
		"healthy":         g.breaker.IsHealthy(),
	}
}

// Close implements Gateway
func (g *GeminiGateway) Close() error {
	// The genai client holds no resources for unary calls
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *types.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &types.TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
