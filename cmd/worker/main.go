// The worker binary serves the background reindex queue: documents whose
// indexing failed while the vector store was unreachable are retried here
// until they land.
package main

import (
	"fmt"
	"log"
	"os"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/synai-app/synai/internal/config"
	"github.com/synai-app/synai/internal/docs"
	"github.com/synai-app/synai/internal/llm"
	"github.com/synai-app/synai/internal/llm/providers"
	"github.com/synai-app/synai/internal/retrieval"
	"github.com/synai-app/synai/internal/server"
	"github.com/synai-app/synai/internal/temporal"
	"github.com/synai-app/synai/internal/vector"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pcfg := llm.DefaultProviderConfig()
	pcfg.Provider = cfg.LLM.Provider
	pcfg.APIKey = cfg.LLM.APIKey
	pcfg.Model = cfg.LLM.Model
	pcfg.BaseURL = cfg.LLM.BaseURL
	pcfg.EmbedModel = cfg.LLM.EmbedModel

	provider, err := providers.NewDefaultFactory().Create(pcfg)
	if err != nil {
		log.Fatalf("creating LLM provider: %v", err)
	}
	if provider == nil {
		log.Fatal("indexing needs an LLM provider for embeddings (llm.provider is empty or \"none\")")
	}
	if cfg.LLM.RPM > 0 {
		provider = llm.WrapWithRateLimit(provider, cfg.LLM.RPM)
	}

	var store vector.Store
	if cfg.Vector.Backend == "memory" {
		store = vector.NewMemory(provider)
	} else {
		store, err = vector.NewQdrant(cfg.Vector.Host, cfg.Vector.Port, provider)
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
	}

	indexer := retrieval.NewIndexer(store, cfg.Chunking.Size, cfg.Chunking.Overlap, nil)
	registry := docs.NewRegistry()
	blobs := docs.NewDirStore(cfg.Storage.Dir)
	svc := docs.NewService(registry, blobs, indexer, store, nil, nil)

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporal.StartWorker(c, cfg.Temporal.TaskQueue, temporal.NewActivities(svc, nil))
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Reindex worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	// Drain the worker before its stores go away.
	drain := server.NewDrain(server.DefaultDrainTimeout, nil)
	drain.Register(server.StopTemporalWorker(w.Stop))
	drain.Register(server.StopVectorStore(store.Close))
	drain.Watch()
	drain.Wait()

	fmt.Println("Worker stopped")
}
