package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockVaultClient serves KVv2 secrets from memory
type MockVaultClient struct {
	mu      sync.Mutex
	secrets map[string]*config.VaultSecret
	err     error
}

func (m *MockVaultClient) GetSecretV2(path string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.secrets[path], nil
}

func (m *MockVaultClient) set(path, keys string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = map[string]*config.VaultSecret{}
	}
	m.secrets[path] = &config.VaultSecret{Data: map[string]any{"keys": keys}, Version: version}
}

func TestVaultWatcherAppliesNewerVersions(t *testing.T) {
	client := &MockVaultClient{}
	client.set("secret/data/smartats/api", "key-one, key-two", 1)

	var got [][]string
	vw := NewVaultWatcher(client, "secret/data/smartats/api", time.Minute,
		func(keys []string) { got = append(got, keys) }, errors.NewNopLogger())

	require.NoError(t, vw.poll())
	require.Len(t, got, 1)
	assert.Equal(t, []string{"key-one", "key-two"}, got[0])

	// Same version: nothing to do
	require.NoError(t, vw.poll())
	assert.Len(t, got, 1)

	client.set("secret/data/smartats/api", "key-three", 2)
	require.NoError(t, vw.poll())
	require.Len(t, got, 2)
	assert.Equal(t, []string{"key-three"}, got[1])

	status := vw.Status()
	assert.Equal(t, int64(2), status["last_version"])
	assert.Equal(t, "secret/data/smartats/api", status["secret_path"])
	assert.NotContains(t, status, "last_error")
}

func TestVaultWatcherKeepsKeysOnBadSecret(t *testing.T) {
	client := &MockVaultClient{}
	client.set("p", "  ,  ", 3)

	called := false
	vw := NewVaultWatcher(client, "p", time.Minute, func([]string) { called = true }, errors.NewNopLogger())

	assert.Error(t, vw.poll())
	assert.False(t, called)
	assert.Equal(t, int64(0), vw.Status()["last_version"])

	client.err = fmt.Errorf("permission denied")
	assert.ErrorContains(t, vw.poll(), "permission denied")
	assert.Equal(t, "permission denied", vw.Status()["last_error"])

	client.err = nil
	client.secrets = nil
	assert.ErrorContains(t, vw.poll(), "secret not found")
}

func TestVaultWatcherStartStop(t *testing.T) {
	vw := NewVaultWatcher(&MockVaultClient{}, "p", time.Hour, func([]string) {}, errors.NewNopLogger())

	require.NoError(t, vw.Start())
	assert.Error(t, vw.Start())
	assert.Equal(t, true, vw.Status()["running"])
	require.NoError(t, vw.Stop())
	require.NoError(t, vw.Stop())
	assert.Equal(t, false, vw.Status()["running"])

	idle := NewVaultWatcher(&MockVaultClient{}, "p", 0, func([]string) {}, errors.NewNopLogger())
	assert.Error(t, idle.Start())
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a ,, b "))
	assert.Empty(t, splitKeys(""))
}
