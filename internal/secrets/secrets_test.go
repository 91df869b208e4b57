package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvBackend_GetWithPrefix(t *testing.T) {
	os.Setenv("SYNAI_GOOGLE_API_KEY", "env-key")
	defer os.Unsetenv("SYNAI_GOOGLE_API_KEY")

	b := NewEnvBackend("")
	val, err := b.Get(context.Background(), ProviderKey("google"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "env-key" {
		t.Fatalf("expected 'env-key', got %s", val)
	}
}

func TestEnvBackend_GetWithoutPrefix(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "bare-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	b := NewEnvBackend("SYNAI_")
	val, err := b.Get(context.Background(), ProviderKey("openai"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "bare-key" {
		t.Fatalf("expected 'bare-key', got %s", val)
	}
}

func TestEnvBackend_GetMissing(t *testing.T) {
	b := NewEnvBackend("SYNAI_")
	if _, err := b.Get(context.Background(), "definitely_not_set_anywhere"); err == nil {
		t.Fatal("expected error for missing env var")
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := b.Set(ctx, UserProviderKey("u1", "anthropic"), "sk-user"); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := b.Get(ctx, UserProviderKey("u1", "anthropic"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "sk-user" {
		t.Fatalf("expected 'sk-user', got %s", val)
	}

	// A fresh backend over the same file sees the persisted value.
	b2, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	val, err = b2.Get(ctx, UserProviderKey("u1", "anthropic"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if val != "sk-user" {
		t.Fatalf("expected persisted 'sk-user', got %s", val)
	}
}

func TestFileBackend_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	b.Set(ctx, "some_key", "value")
	if err := b.Delete(ctx, "some_key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, "some_key"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestFileBackend_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Set(context.Background(), "k", "v")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestFileBackend_RequiresPath(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestManager_PrimaryThenFallback(t *testing.T) {
	os.Setenv("SYNAI_MISTRAL_API_KEY", "from-env")
	defer os.Unsetenv("SYNAI_MISTRAL_API_KEY")

	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(Config{Backend: "file", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()

	// Not in the file, resolved from the env fallback.
	val, err := m.Get(ctx, ProviderKey("mistral"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "from-env" {
		t.Fatalf("expected 'from-env', got %s", val)
	}

	// File value wins once present.
	m.ClearCache()
	if err := m.Set(ctx, ProviderKey("mistral"), "from-file"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, _ = m.Get(ctx, ProviderKey("mistral"))
	if val != "from-file" {
		t.Fatalf("expected 'from-file', got %s", val)
	}
}

func TestManager_GetOrDefault(t *testing.T) {
	m, err := NewManager(Config{Backend: "env"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val := m.GetOrDefault(context.Background(), "nonexistent_key_xyz", "fallback")
	if val != "fallback" {
		t.Fatalf("expected 'fallback', got %s", val)
	}
}

func TestManager_APIKeyUserOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(Config{Backend: "file", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.Set(ctx, ProviderKey("groq"), "shared")
	m.Set(ctx, UserProviderKey("alice", "groq"), "alices-own")

	val, err := m.APIKey(ctx, "alice", "groq")
	if err != nil {
		t.Fatalf("apikey: %v", err)
	}
	if val != "alices-own" {
		t.Fatalf("expected user key to win, got %s", val)
	}

	val, err = m.APIKey(ctx, "bob", "groq")
	if err != nil {
		t.Fatalf("apikey: %v", err)
	}
	if val != "shared" {
		t.Fatalf("expected shared key for bob, got %s", val)
	}
}

func TestManager_UnknownBackend(t *testing.T) {
	if _, err := NewManager(Config{Backend: "vault"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestManager_Cache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(Config{Backend: "file", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.Set(ctx, "cached_key", "v1")
	m.Get(ctx, "cached_key")

	// Mutate the file behind the manager's back; the cache still serves v1.
	fb, _ := NewFileBackend(path)
	fb.Set(ctx, "cached_key", "v2")

	val, _ := m.Get(ctx, "cached_key")
	if val != "v1" {
		t.Fatalf("expected cached 'v1', got %s", val)
	}

	m.ClearCache()
	val, _ = m.Get(ctx, "cached_key")
	if val != "v2" {
		t.Fatalf("expected fresh 'v2' after cache clear, got %s", val)
	}
}
