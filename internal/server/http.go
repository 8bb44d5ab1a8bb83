package server

import (
	"context"
	"html/template"
	"io"
	"os"
	"sync/atomic"
	"time"

	"smartats/internal/ai"
	"smartats/internal/ats"
	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/observability"
	"smartats/internal/types"
)

// Analyzer runs one submission to a rendered or failed outcome
type Analyzer interface {
	Analyze(ctx context.Context, in types.Submission) *ats.Outcome
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// TLS Configuration
	TLSConfig config.TLSConfig

	// API Authentication, swapped whole when keys rotate
	apiKeys atomic.Pointer[map[string]bool]

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	HealthCheck config.HealthCheckConfig

	analyzer      Analyzer
	gateway       ai.Gateway
	observability *observability.ObservabilityManager
	keyWatcher    *VaultWatcher
	page          *template.Template

	// Console receives the startup banner
	Console io.Writer

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	HealthCheck    config.HealthCheckConfig
}

// Deps are the collaborators a Server serves requests with
type Deps struct {
	Analyzer      Analyzer
	Gateway       ai.Gateway
	Observability *observability.ObservabilityManager
}

// NewServerConfig derives the server settings from the application config.
// The request limit leaves room for the form fields next to the resume.
func NewServerConfig(cfg *config.Config, version string) ServerConfig {
	maxRequest := cfg.App.MaxFileSize
	if maxRequest > 0 {
		maxRequest += int64(cfg.App.MaxJDLength)*4 + 64*1024
	}
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: maxRequest,
		RateLimit:      &cfg.Server.RateLimit,
		HealthCheck:    cfg.Observability.HealthCheck,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(cfg ServerConfig, deps Deps, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(*cfg.RateLimit, logger)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		TLSConfig:      cfg.TLSConfig,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		HealthCheck:    cfg.HealthCheck,
		analyzer:       deps.Analyzer,
		gateway:        deps.Gateway,
		observability:  deps.Observability,
		page:           pageTemplate,
		Console:        os.Stdout,
		Logger:         logger,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. An empty set disables authentication.
func (s *Server) SetAPIKeys(keys []string) {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}
	s.apiKeys.Store(&apiKeyMap)
}

func (s *Server) currentAPIKeys() map[string]bool {
	if keys := s.apiKeys.Load(); keys != nil {
		return *keys
	}
	return nil
}

// aiModelStatus is the model section of the health response
type aiModelStatus struct {
	ai.ModelInfo
	Checked bool `json:"checked"`
}

// SetKeyWatcher attaches a Vault watcher that is started and stopped with
// the server. Call before Start.
func (s *Server) SetKeyWatcher(w *VaultWatcher) {
	s.keyWatcher = w
}
