package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"
)

// VaultClientInterface is the part of the Vault client the watcher reads with
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// APIKeysCallback receives the key set after every version change
type APIKeysCallback func(keys []string)

// VaultWatcher polls a KVv2 secret holding the server API keys and hands the
// new set to its callback whenever the secret version increases
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onChange     APIKeysCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastError   string
	lastPoll    time.Time
}

// NewVaultWatcher creates a new VaultWatcher. The first successful poll
// always applies the current keys.
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onChange APIKeysCallback, logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onChange:     onChange,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins polling Vault for secret changes
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault watcher needs a positive poll interval")
	}
	vw.running = true
	go vw.pollLoop()
	vw.logger.Info("Vault API key watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	vw.logger.Info("Vault API key watcher stopped")
	return nil
}

// pollLoop polls Vault for secret changes
func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := vw.poll(); err != nil {
				vw.logger.LogError(err, "Failed to check Vault for API key updates")
			}
		case <-vw.stopChan:
			return
		}
	}
}

// poll reads the secret once and applies a newer version.
// An empty key set is ignored so that a bad write cannot lock everyone out.
func (vw *VaultWatcher) poll() error {
	secret, err := vw.client.GetSecretV2(vw.secretPath)

	vw.mu.Lock()
	defer vw.mu.Unlock()
	vw.lastPoll = time.Now()

	if err != nil {
		vw.lastError = err.Error()
		return fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		vw.lastError = "secret not found"
		return fmt.Errorf("secret not found at path: %s", vw.secretPath)
	}
	vw.lastError = ""

	if secret.Version <= vw.lastVersion {
		return nil
	}

	raw, _ := secret.Data["keys"].(string)
	keys := splitKeys(raw)
	if len(keys) == 0 {
		vw.lastError = "secret has no keys"
		return fmt.Errorf("secret %s version %d has no API keys", vw.secretPath, secret.Version)
	}

	vw.lastVersion = secret.Version
	vw.logger.Info("API keys rotated from Vault", "version", secret.Version, "count", len(keys))
	vw.onChange(keys)
	return nil
}

// Status returns the current status of the VaultWatcher for the stats endpoint
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	status := map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
	if !vw.lastPoll.IsZero() {
		status["last_poll"] = vw.lastPoll.Format(time.RFC3339)
	}
	if vw.lastError != "" {
		status["last_error"] = vw.lastError
	}
	return status
}

// splitKeys splits a comma-separated key list, dropping blanks
func splitKeys(raw string) []string {
	var keys []string
	for part := range strings.SplitSeq(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
