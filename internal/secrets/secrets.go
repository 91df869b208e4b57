// Package secrets stores provider API keys outside the main config file.
// Two backends: environment variables for deployments, a JSON file for
// local runs where users register their own provider keys.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultEnvPrefix namespaces environment-variable lookups.
const DefaultEnvPrefix = "SYNAI_"

// ProviderKey names the secret holding the shared API key for an LLM
// provider family, e.g. "google_api_key".
func ProviderKey(provider string) string {
	return provider + "_api_key"
}

// UserProviderKey names the secret holding one user's own API key for a
// provider. Users may bring their own keys; these take precedence over
// the shared ProviderKey when present.
func UserProviderKey(userID, provider string) string {
	return "user_" + userID + "_" + provider + "_api_key"
}

// Backend is one place secrets live.
type Backend interface {
	// Get retrieves a secret by key. Empty values count as missing.
	Get(ctx context.Context, key string) (string, error)
	// Set stores a secret. The env backend sets a process-local variable.
	Set(ctx context.Context, key, value string) error
	// Delete removes a secret.
	Delete(ctx context.Context, key string) error
	// Name identifies the backend.
	Name() string
}

// Config selects and parameterizes a backend.
type Config struct {
	// Backend is "env" or "file".
	Backend string
	// Path is the JSON secrets file for the file backend.
	Path string
	// EnvPrefix overrides DefaultEnvPrefix.
	EnvPrefix string
}

// Manager reads from a primary backend with the environment as fallback,
// caching hits so hot paths (per-request key lookups) stay off disk.
type Manager struct {
	primary  Backend
	fallback Backend

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager creates a manager for the configured backend.
func NewManager(cfg Config) (*Manager, error) {
	prefix := cfg.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	var primary Backend
	switch cfg.Backend {
	case "file":
		fp, err := NewFileBackend(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("creating file secrets backend: %w", err)
		}
		primary = fp
	case "env", "":
		primary = NewEnvBackend(prefix)
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}

	return &Manager{
		primary:  primary,
		fallback: NewEnvBackend(prefix),
		cache:    make(map[string]string),
	}, nil
}

// Get retrieves a secret, trying the primary backend then the environment.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	if val, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return val, nil
	}
	m.mu.RUnlock()

	if val, err := m.primary.Get(ctx, key); err == nil && val != "" {
		m.cacheSet(key, val)
		return val, nil
	}
	if val, err := m.fallback.Get(ctx, key); err == nil && val != "" {
		m.cacheSet(key, val)
		return val, nil
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// GetOrDefault retrieves a secret or returns defaultVal when missing.
func (m *Manager) GetOrDefault(ctx context.Context, key, defaultVal string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return defaultVal
	}
	return val
}

// APIKey resolves the API key to use for a provider on behalf of a user:
// the user's own registered key if they have one, else the shared key.
func (m *Manager) APIKey(ctx context.Context, userID, provider string) (string, error) {
	if userID != "" {
		if val, err := m.Get(ctx, UserProviderKey(userID, provider)); err == nil {
			return val, nil
		}
	}
	return m.Get(ctx, ProviderKey(provider))
}

// Set stores a secret in the primary backend.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if err := m.primary.Set(ctx, key, value); err != nil {
		return err
	}
	m.cacheSet(key, value)
	return nil
}

// Delete removes a secret from the primary backend.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.primary.Delete(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
	return nil
}

// ClearCache drops cached values, forcing re-reads from the backend.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

func (m *Manager) cacheSet(key, value string) {
	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()
}

// EnvBackend reads secrets from environment variables.
type EnvBackend struct {
	prefix string
}

// NewEnvBackend creates an environment-based backend.
func NewEnvBackend(prefix string) *EnvBackend {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvBackend{prefix: prefix}
}

func (b *EnvBackend) Name() string { return "env" }

func (b *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	envKey := b.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	if val := os.Getenv(strings.ToUpper(key)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s", envKey)
}

func (b *EnvBackend) Set(ctx context.Context, key, value string) error {
	return os.Setenv(b.prefix+strings.ToUpper(key), value)
}

func (b *EnvBackend) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(b.prefix + strings.ToUpper(key))
}
