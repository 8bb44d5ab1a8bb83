package server

import (
	"net/http"
	"strings"
)

type middleware func(http.HandlerFunc) http.HandlerFunc

// chain applies mws so that the first one sees the request first
func chain(h http.HandlerFunc, mws ...middleware) http.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Handler returns the routed handler wrapped in HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return s.observability.HTTPMiddleware()(s.setupRoutes())
}

// setupRoutes mounts the form page, the JSON API and the probes.
// Submissions are throttled before anything reads the body.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	throttle := s.rateLimitMiddleware()
	limitBody := s.requestSizeLimitMiddleware()

	mux.HandleFunc("GET /{$}", s.formHandler)
	mux.HandleFunc("POST /analyze", chain(s.formSubmitHandler, throttle, limitBody))
	mux.HandleFunc("POST /api/analyze", chain(s.apiAnalyzeHandler, throttle, s.authMiddleware, limitBody))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	return mux
}

// authMiddleware gates the JSON API on the current key set. With no keys
// configured the API is open.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := s.currentAPIKeys()
		if len(keys) == 0 {
			next(w, r)
			return
		}

		presented := requestAPIKey(r)
		switch {
		case presented == "":
			s.Logger.Info("Rejected API submission without a key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "Send the key in X-API-Key or as an Authorization Bearer token", http.StatusUnauthorized)
		case !keys[presented]:
			s.Logger.Info("Rejected API submission with an unknown key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key", maskAPIKey(presented))
			writeErrorResponse(w, "Invalid API key", "The key is not accepted by this server", http.StatusUnauthorized)
		default:
			next(w, r)
		}
	}
}

// requestAPIKey reads X-API-Key, falling back to a Bearer token
func requestAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestSizeLimitMiddleware caps the body at MaxRequestSize bytes
func (s *Server) requestSizeLimitMiddleware() middleware {
	if s.MaxRequestSize <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			next(w, r)
		}
	}
}

// maskAPIKey keeps the first four characters of a key for logs
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}
