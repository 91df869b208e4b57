package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// RPM caps outbound requests per minute; 0 disables throttling.
	RPM int `mapstructure:"rpm"`
}

type VectorConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Backend selects "qdrant" or "memory" (single-node local runs).
	Backend string `mapstructure:"backend"`
}

type RetrievalConfig struct {
	ContextChunks int `mapstructure:"context_chunks"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type StorageConfig struct {
	// Dir is the root of the document blob store.
	Dir string `mapstructure:"dir"`
	// AuditLog is the JSONL audit file path; empty disables auditing.
	AuditLog string `mapstructure:"audit_log"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	// Endpoint is the OTLP gRPC collector address; empty disables export.
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Vector: VectorConfig{
			Host:    "localhost",
			Port:    6334,
			Backend: "qdrant",
		},
		Retrieval: RetrievalConfig{ContextChunks: 5},
		Chunking:  ChunkingConfig{Size: 600, Overlap: 120},
		Storage:   StorageConfig{Dir: "data/uploads"},
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "synai-indexing",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}
	if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		warnings = append(warnings, fmt.Sprintf("chunk overlap %d is not smaller than chunk size %d", c.Chunking.Overlap, c.Chunking.Size))
	}
	if c.Vector.Backend != "" && c.Vector.Backend != "qdrant" && c.Vector.Backend != "memory" {
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s' (expected qdrant or memory)", c.Vector.Backend))
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path loads
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return cfg, nil
}

// bindDefaults registers every key with its default so AutomaticEnv picks
// up SYNAI_* variables even without a config file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.embed_model", cfg.LLM.EmbedModel)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	v.SetDefault("llm.rpm", cfg.LLM.RPM)
	v.SetDefault("vector.host", cfg.Vector.Host)
	v.SetDefault("vector.port", cfg.Vector.Port)
	v.SetDefault("vector.backend", cfg.Vector.Backend)
	v.SetDefault("retrieval.context_chunks", cfg.Retrieval.ContextChunks)
	v.SetDefault("chunking.size", cfg.Chunking.Size)
	v.SetDefault("chunking.overlap", cfg.Chunking.Overlap)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.audit_log", cfg.Storage.AuditLog)
	v.SetDefault("temporal.host", cfg.Temporal.Host)
	v.SetDefault("temporal.namespace", cfg.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", cfg.Temporal.TaskQueue)
	v.SetDefault("telemetry.endpoint", cfg.Telemetry.Endpoint)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
