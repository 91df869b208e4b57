// Package providers wires the concrete LLM clients into a factory.
// It lives outside package llm so the clients can import the shared types
// without an import cycle.
package providers

import (
	"github.com/synai-app/synai/internal/llm"
	"github.com/synai-app/synai/internal/llm/anthropic"
	"github.com/synai-app/synai/internal/llm/google"
	"github.com/synai-app/synai/internal/llm/openai"
)

// RegisterDefaults registers every built-in provider family with the factory.
// OpenAI-compatible hosts share one client parameterized by base URL.
func RegisterDefaults(f *llm.ProviderFactory) {
	f.Register("google", func(cfg llm.ProviderConfig) (llm.Provider, error) {
		return google.New(cfg)
	})
	f.Register("anthropic", func(cfg llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(cfg)
	})

	for _, name := range []string{"openai", "groq", "together", "mistral", "zai"} {
		name := name
		base := llm.KnownProviders[name]
		f.Register(name, func(cfg llm.ProviderConfig) (llm.Provider, error) {
			if cfg.BaseURL == "" {
				cfg.BaseURL = base
			}
			return openai.New(name, cfg)
		})
	}

	// "custom" requires an explicit base URL and speaks the OpenAI protocol.
	f.Register("custom", func(cfg llm.ProviderConfig) (llm.Provider, error) {
		return openai.New("custom", cfg)
	})
}

// NewDefaultFactory returns a factory with all built-in providers registered.
func NewDefaultFactory() *llm.ProviderFactory {
	f := llm.NewFactory()
	RegisterDefaults(f)
	return f
}
