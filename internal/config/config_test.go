package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"SMARTATS_AI_APIKEY", "GOOGLE_API_KEY", "GEMINI_API_KEY", "SMARTATS_SERVER_APIKEYS"} {
		t.Setenv(name, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yaml", "app:\n  logLevel: info\n")

	cfg, err := LoadConfigWithOptions(LoadOptions{ConfigFile: cfgFile})
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Empty(t, cfg.AI.APIKey)
	assert.False(t, cfg.AI.CircuitBreaker.Enabled)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.App.MaxFileSize)
	assert.Equal(t, []string{"json", "text", "markdown"}, cfg.App.SupportedFormats)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
	assert.False(t, cfg.Server.TLS.Enabled())
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	promptFile := writeFile(t, dir, "prompt.md", "Resume: {text}\nJD: {jd}\n")
	cfgFile := writeFile(t, dir, "config.yaml", `
ai:
  model: gemini-1.5-pro
  temperature: 0.5
  promptFile: `+promptFile+`
server:
  port: "9000"
  rateLimit:
    enabled: true
    requestsPerMin: 10
`)
	t.Setenv("SMARTATS_SERVER_HOST", "0.0.0.0")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := LoadConfigWithOptions(LoadOptions{ConfigFile: cfgFile})
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Model)
	assert.InDelta(t, 0.5, cfg.AI.Temperature, 0.0001)
	assert.Equal(t, "Resume: {text}\nJD: {jd}\n", cfg.AI.PromptTemplate)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.Server.RateLimit.RequestsPerMin)
	assert.Equal(t, "google-key", cfg.AI.APIKey)
}

func TestLoadConfigEnvFile(t *testing.T) {
	clearKeyEnv(t)
	// godotenv never overrides a variable that is already set, even to ""
	require.NoError(t, os.Unsetenv("GOOGLE_API_KEY"))
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yaml", "{}\n")
	envFile := writeFile(t, dir, ".env", "GOOGLE_API_KEY=from-dotenv\n")

	cfg, err := LoadConfigWithOptions(LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.AI.APIKey)
}

func TestLoadConfigMissingPromptFile(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yaml", "ai:\n  promptFile: "+filepath.Join(dir, "missing.md")+"\n")

	_, err := LoadConfigWithOptions(LoadOptions{ConfigFile: cfgFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found")
}

func TestReadPromptFileRejectsBlank(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blank.md", "  \n\t\n")

	_, err := ReadPromptFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestApplyFallbacksAPIKeyPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		google   string
		gemini   string
		expected string
	}{
		{name: "explicit wins", explicit: "explicit", google: "g", gemini: "m", expected: "explicit"},
		{name: "google before gemini", google: "g", gemini: "m", expected: "g"},
		{name: "gemini last", gemini: "m", expected: "m"},
		{name: "none", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_API_KEY", tt.google)
			t.Setenv("GEMINI_API_KEY", tt.gemini)
			t.Setenv("SMARTATS_SERVER_APIKEYS", "")

			cfg := &Config{AI: AIConfig{APIKey: tt.explicit}}
			cfg.applyFallbacks()
			assert.Equal(t, tt.expected, cfg.AI.APIKey)
		})
	}
}

func TestApplyFallbacksServerAPIKeys(t *testing.T) {
	t.Setenv("SMARTATS_SERVER_APIKEYS", " key1, key2 ,,key3 ")

	cfg := &Config{}
	cfg.applyFallbacks()
	assert.Equal(t, []string{"key1", "key2", "key3"}, cfg.Server.APIKeys)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing api key is allowed", mutate: func(c *Config) { c.AI.APIKey = "" }},
		{
			name:     "unsupported provider",
			mutate:   func(c *Config) { c.AI.Provider = "openai" },
			errorMsg: "unsupported AI provider: openai",
		},
		{
			name:     "empty model",
			mutate:   func(c *Config) { c.AI.Model = "" },
			errorMsg: "AI model is required",
		},
		{
			name:     "temperature out of range",
			mutate:   func(c *Config) { c.AI.Temperature = 3 },
			errorMsg: "AI temperature must be between 0 and 2",
		},
		{
			name: "breaker threshold out of range",
			mutate: func(c *Config) {
				c.AI.CircuitBreaker.Enabled = true
				c.AI.CircuitBreaker.FailureThreshold = 0
			},
			errorMsg: "circuit breaker failure threshold",
		},
		{
			name:     "empty port",
			mutate:   func(c *Config) { c.Server.Port = "" },
			errorMsg: "server port is required",
		},
		{
			name:     "non-positive max file size",
			mutate:   func(c *Config) { c.App.MaxFileSize = 0 },
			errorMsg: "max file size must be positive",
		},
		{
			name:     "unsupported default format",
			mutate:   func(c *Config) { c.App.DefaultFormat = "xml" },
			errorMsg: "invalid default format: xml",
		},
		{
			name:     "cert without key",
			mutate:   func(c *Config) { c.Server.TLS.CertFile = "server.crt" },
			errorMsg: "both certFile and keyFile are required",
		},
		{
			name: "bad tls version",
			mutate: func(c *Config) {
				c.Server.TLS = TLSConfig{CertFile: "a", KeyFile: "b", MinVersion: "1.1"}
			},
			errorMsg: "invalid TLS minVersion: 1.1",
		},
		{
			name: "rate limit without rate",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RequestsPerMin = 0
			},
			errorMsg: "requestsPerMin must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestDefaultDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.AI.CircuitBreaker.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Observability.Metrics.CollectionInterval)
	assert.Zero(t, cfg.AI.Timeout, "model calls are bounded by the request context only")
}
