package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// healthHandler reports liveness and, when enabled, whether the model is reachable
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "smartats",
		"version": s.Version,
	}

	healthy := true
	if s.gateway != nil {
		if s.HealthCheck.AIModelCheck {
			info := s.checkAIModelHealth(r.Context())
			response["ai_model"] = info
			healthy = info.Available
		} else {
			response["ai_model"] = map[string]any{
				"name":    s.gateway.Model(),
				"checked": false,
			}
		}
		stats := s.gateway.Stats()
		response["ai_gateway"] = stats
		if ok, present := stats["healthy"].(bool); present && !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// checkAIModelHealth asks the provider about the configured model
func (s *Server) checkAIModelHealth(ctx context.Context) *aiModelStatus {
	timeout := s.HealthCheck.AIModelCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info := s.gateway.GetModelInfo(ctx)
	return &aiModelStatus{ModelInfo: *info, Checked: true}
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "smartats",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    len(s.currentAPIKeys()),
			"tls_enabled":            s.TLSConfig.Enabled(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.Stats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.gateway != nil {
		response["ai_gateway"] = s.gateway.Stats()
	}

	if s.keyWatcher != nil {
		response["api_key_watcher"] = s.keyWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
