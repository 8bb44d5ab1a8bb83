package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(addr string) {
	scheme := "http"
	if s.TLSConfig.Enabled() {
		scheme = "https"
	}
	fmt.Fprintf(s.Console, "Starting server on %s://%s\n", scheme, addr)
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available endpoints
func (s *Server) displayEndpoints() {
	fmt.Fprintln(s.Console, "Available endpoints:")
	fmt.Fprintln(s.Console, "  GET  /             - Resume evaluation form")
	fmt.Fprintln(s.Console, "  POST /analyze      - Form submission (HTML)")
	fmt.Fprintln(s.Console, "  POST /api/analyze  - Analyze resume (JSON, requires API key when configured)")
	fmt.Fprintln(s.Console, "  GET  /health       - Health check")
	fmt.Fprintln(s.Console, "  GET  /stats        - Server statistics")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if n := len(s.currentAPIKeys()); n > 0 {
		fmt.Fprintf(s.Console, "API authentication: ENABLED (%d keys configured)\n", n)
		fmt.Fprintln(s.Console, "Include 'X-API-Key: <your-key>' header in requests to /api/analyze")
	} else {
		fmt.Fprintln(s.Console, "API authentication: DISABLED (no API keys configured)")
	}
	if s.keyWatcher != nil {
		fmt.Fprintln(s.Console, "  - API keys are refreshed from Vault")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.Console, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.Console, "Request size limit: DISABLED")
		fmt.Fprintln(s.Console, "WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(s.Console, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(s.Console, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(s.Console, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(s.Console, "Rate limiting: DISABLED")
	}
}
