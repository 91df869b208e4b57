package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synai-app/synai/internal/chat"
	"github.com/synai-app/synai/internal/config"
	"github.com/synai-app/synai/internal/extract"
	"github.com/synai-app/synai/internal/llm"
	"github.com/synai-app/synai/internal/llm/providers"
	"github.com/synai-app/synai/internal/memory"
	"github.com/synai-app/synai/internal/observability"
	"github.com/synai-app/synai/internal/retrieval"
	"github.com/synai-app/synai/internal/secrets"
	"github.com/synai-app/synai/internal/server"
	"github.com/synai-app/synai/internal/usage"
	"github.com/synai-app/synai/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "synai",
		Short: "Retrieval-augmented document chat backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: env + built-in defaults)")

	var (
		userID   string
		fileID   string
		filePath string
	)
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Extract, chunk and index a document into the user's collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), configPath, userID, fileID, filePath)
		},
	}
	indexCmd.Flags().StringVar(&userID, "user", "", "Owning user ID")
	indexCmd.Flags().StringVar(&fileID, "id", "", "File ID (default: file name)")
	indexCmd.Flags().StringVar(&filePath, "file", "", "Path to the document")
	_ = indexCmd.MarkFlagRequired("user")
	_ = indexCmd.MarkFlagRequired("file")

	var (
		query      string
		fileIDs    []string
		numResults int
		jsonOut    bool
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Run the staged retrieval cascade over indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), configPath, userID, query, fileIDs, numResults, jsonOut)
		},
	}
	searchCmd.Flags().StringVar(&userID, "user", "", "User whose collection to search")
	searchCmd.Flags().StringVar(&query, "query", "", "Search query")
	searchCmd.Flags().StringSliceVar(&fileIDs, "files", nil, "File IDs to search (comma-separated)")
	searchCmd.Flags().IntVar(&numResults, "n", 5, "Results per file")
	searchCmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")
	_ = searchCmd.MarkFlagRequired("user")
	_ = searchCmd.MarkFlagRequired("query")

	var (
		message     string
		sessionID   string
		imagePaths  []string
		uploadPaths []string
	)
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Run one grounded chat turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, userID, sessionID, message, fileIDs, uploadPaths, imagePaths, jsonOut)
		},
	}
	chatCmd.Flags().StringVar(&userID, "user", "", "User ID")
	chatCmd.Flags().StringVar(&message, "message", "", "User message")
	chatCmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation history")
	chatCmd.Flags().StringSliceVar(&fileIDs, "files", nil, "File IDs to ground the answer on")
	chatCmd.Flags().StringSliceVar(&uploadPaths, "upload", nil, "Documents to index and attach to this turn (paths)")
	chatCmd.Flags().StringSliceVar(&imagePaths, "image", nil, "Image attachments (paths)")
	chatCmd.Flags().BoolVar(&jsonOut, "json", false, "Output the full result as JSON")
	_ = chatCmd.MarkFlagRequired("user")
	_ = chatCmd.MarkFlagRequired("message")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-12s %s\n", name, url)
			}
			fmt.Println("  custom       (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println("  none         (retrieval-only operation, no completions)")
			fmt.Println()
			fmt.Println("Configure in synai.yaml or via environment:")
			fmt.Println("  SYNAI_LLM_PROVIDER=openai")
			fmt.Println("  SYNAI_LLM_API_KEY=sk-...")
			fmt.Println("  SYNAI_LLM_MODEL=gpt-4o-mini")
		},
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the health endpoint and keep the backend warm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, addr)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8090", "Health endpoint listen address")

	rootCmd.AddCommand(indexCmd, searchCmd, chatCmd, providersCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// backend bundles the wired components a command needs.
type backend struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider llm.Provider
	store    vector.Store
	engine   *retrieval.Engine
	indexer  *retrieval.Indexer
}

func buildBackend(configPath string) (*backend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg, provider)
	if err != nil {
		return nil, err
	}

	engine := retrieval.NewEngine(store, nil, retrieval.DefaultConfig(), logger)
	indexer := retrieval.NewIndexer(store, cfg.Chunking.Size, cfg.Chunking.Overlap, logger)

	return &backend{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		store:    store,
		engine:   engine,
		indexer:  indexer,
	}, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	apiKey := cfg.LLM.APIKey
	if apiKey == "" && cfg.LLM.Provider != "" && cfg.LLM.Provider != "none" {
		mgr, err := secrets.NewManager(secrets.Config{Backend: "env"})
		if err == nil {
			apiKey = mgr.GetOrDefault(context.Background(), secrets.ProviderKey(cfg.LLM.Provider), "")
		}
	}

	pcfg := llm.DefaultProviderConfig()
	pcfg.Provider = cfg.LLM.Provider
	pcfg.APIKey = apiKey
	pcfg.Model = cfg.LLM.Model
	pcfg.BaseURL = cfg.LLM.BaseURL
	pcfg.EmbedModel = cfg.LLM.EmbedModel

	provider, err := providers.NewDefaultFactory().Create(pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider != nil && cfg.LLM.RPM > 0 {
		provider = llm.WrapWithRateLimit(provider, cfg.LLM.RPM)
	}
	return provider, nil
}

func buildStore(cfg *config.Config, provider llm.Provider) (vector.Store, error) {
	var embedder vector.Embedder
	if provider != nil {
		embedder = provider
	}
	switch cfg.Vector.Backend {
	case "memory":
		return vector.NewMemory(embedder), nil
	default:
		if embedder == nil {
			return nil, fmt.Errorf("vector backend %q needs an LLM provider for embeddings", cfg.Vector.Backend)
		}
		return vector.NewQdrant(cfg.Vector.Host, cfg.Vector.Port, embedder)
	}
}

func runIndex(ctx context.Context, configPath, userID, fileID, filePath string) error {
	b, err := buildBackend(configPath)
	if err != nil {
		return err
	}
	defer b.store.Close()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}
	name := filepath.Base(filePath)
	if fileID == "" {
		fileID = name
	}

	n, err := b.indexer.Index(ctx, userID, fileID, name, data)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %s as %s: %d chunks\n", name, fileID, n)
	return nil
}

func runSearch(ctx context.Context, configPath, userID, query string, fileIDs []string, n int, jsonOut bool) error {
	b, err := buildBackend(configPath)
	if err != nil {
		return err
	}
	defer b.store.Close()

	var matches []vector.Match
	if len(fileIDs) > 1 {
		matches, err = b.engine.SearchFiles(ctx, userID, query, fileIDs)
	} else {
		matches, err = b.engine.Search(ctx, userID, query, n, fileIDs)
	}
	if err != nil {
		return err
	}

	if jsonOut {
		data, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, m := range matches {
		label := m.PageLabel
		if label == "" {
			label = "-"
		}
		text := m.Text
		if len([]rune(text)) > 120 {
			text = string([]rune(text)[:120]) + "..."
		}
		fmt.Printf("%2d. d=%.3f  %s (%s)\n    %s\n", i+1, m.Distance, m.FileID, label, text)
	}
	return nil
}

func runChat(ctx context.Context, configPath, userID, sessionID, message string, fileIDs, uploadPaths, imagePaths []string, jsonOut bool) error {
	b, err := buildBackend(configPath)
	if err != nil {
		return err
	}
	defer b.store.Close()

	// Attached documents are indexed synchronously and also passed through
	// as uploads, so the turn sees their text even before retrieval does.
	var uploads []chat.Upload
	for _, path := range uploadPaths {
		u, err := prepareUpload(ctx, b, userID, path)
		if err != nil {
			return err
		}
		uploads = append(uploads, u)
		fileIDs = append(fileIDs, u.FileID)
	}

	var images []llm.Image
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading image %s: %w", path, err)
		}
		images = append(images, llm.Image{Data: data, MIMEType: mimeForImage(path)})
	}

	orch := chat.New(b.provider, b.engine, nil, memory.NewStore(), usage.NewTracker(), nil, b.logger)
	result, err := orch.Chat(ctx, chat.Request{
		UserID:    userID,
		SessionID: sessionID,
		Message:   message,
		FileIDs:   fileIDs,
		Uploads:   uploads,
		Images:    images,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(result.Content)
	if len(result.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range result.Citations {
			page := c.PageLabel
			if page == "" {
				page = "-"
			}
			fmt.Printf("  [%.1f%%] %s (%s)\n", c.Relevance*100, c.FileName, page)
		}
	}
	return nil
}

// prepareUpload extracts and indexes a document attached to a chat turn,
// returning its text for direct prompt injection.
func prepareUpload(ctx context.Context, b *backend, userID, path string) (chat.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.Upload{}, fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)

	units, err := extract.Extract(name, data)
	if err != nil {
		return chat.Upload{}, fmt.Errorf("extracting %s: %w", name, err)
	}
	var texts []string
	for _, u := range units {
		texts = append(texts, u.Text)
	}

	if _, err := b.indexer.Index(ctx, userID, name, name, data); err != nil {
		return chat.Upload{}, fmt.Errorf("indexing %s: %w", name, err)
	}
	return chat.Upload{
		FileID: name,
		Name:   name,
		Text:   strings.Join(texts, "\n"),
	}, nil
}

func mimeForImage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func runServe(ctx context.Context, configPath, addr string) error {
	b, err := buildBackend(configPath)
	if err != nil {
		return err
	}

	tcfg := observability.DefaultTracingConfig()
	tcfg.OTLPEndpoint = b.cfg.Telemetry.Endpoint
	tp, err := observability.InitTracing(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	var audit *observability.AuditLogger
	if b.cfg.Storage.AuditLog != "" {
		audit, err = observability.NewAuditLogger(&observability.AuditConfig{
			Enabled:    true,
			OutputPath: b.cfg.Storage.AuditLog,
		})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
	}

	g := server.NewGracefulServer("dev", server.DefaultDrainTimeout, b.logger)
	g.Health.RegisterCheck(server.VectorStoreCheck(func(ctx context.Context) error {
		_, err := b.store.Fetch(ctx, vector.CollectionID("healthcheck"), vector.Filter{}, 1)
		return err
	}))
	g.Health.RegisterCheck(server.BlobStoreCheck(b.cfg.Storage.Dir))
	providerName := "none"
	if b.provider != nil {
		providerName = b.provider.Name()
	}
	g.Health.RegisterCheck(server.LLMCheck(providerName, nil))

	g.Register(server.FlushTracing(tp.Shutdown))
	if audit != nil {
		g.Register(server.FlushAudit(audit.Close))
	}
	g.Register(server.StopVectorStore(b.store.Close))

	b.logger.Info("health endpoint listening", "addr", addr)
	if err := g.Start(addr); err != nil {
		return err
	}
	g.Wait()
	return nil
}
