package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps secrets in a JSON file with restrictive permissions.
// This is where locally-run deployments persist user-registered provider
// keys; production deployments should use the env backend.
type FileBackend struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileBackend opens (or creates) a JSON secrets file.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets file path required")
	}

	b := &FileBackend{path: path, data: make(map[string]string)}
	if err := b.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading secrets file: %w", err)
		}
		if err := b.save(); err != nil {
			return nil, fmt.Errorf("creating secrets file: %w", err)
		}
	}
	return b, nil
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.data[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return val, nil
}

func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[key] = value
	return b.save()
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)
	return b.save()
}

// Reload re-reads the file, picking up edits made outside the process.
func (b *FileBackend) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

func (b *FileBackend) load() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &b.data)
}

func (b *FileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling secrets: %w", err)
	}
	return os.WriteFile(b.path, data, 0600)
}
