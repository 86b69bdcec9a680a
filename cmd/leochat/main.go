// File path: cmd/leochat/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/smpleo/leochat/internal/api"
	"github.com/smpleo/leochat/internal/chat"
	"github.com/smpleo/leochat/internal/common"
	"github.com/smpleo/leochat/internal/ingest"
	"github.com/smpleo/leochat/internal/llm"
	"github.com/smpleo/leochat/internal/llm/providers"
	"github.com/smpleo/leochat/internal/store"
	"github.com/smpleo/leochat/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("leochat: .env file not loaded", "error", err)
	} else {
		logger.Info("leochat: environment loaded from .env")
	}

	addr := flag.String("addr", ":8081", "listen address")
	dbPath := flag.String("db", "", "path to the sqlite database (overrides LEOCHAT_DB_PATH)")
	docsDir := flag.String("docs", defaultDocsDir(), "directory holding school documents to ingest")
	providerCacheSize := flag.Int("provider-cache", 4, "number of model clients kept warm")
	flag.Parse()

	logger.Info("leochat: startup initiated", "addr", *addr)

	storeCfg, err := store.LoadConfig()
	if err != nil {
		logger.Error("leochat: store config load failed", "error", err)
		fmt.Println("store config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dbPath); trimmed != "" {
		storeCfg.Path = trimmed
	}
	st, err := store.OpenWithConfig(storeCfg)
	if err != nil {
		logger.Error("leochat: store initialization failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("leochat: conversation store ready", "path", storeCfg.Path)

	vectorClient, err := vector.NewFromEnv(ctx)
	if err != nil {
		logger.Error("leochat: chromadb initialization failed", "error", err)
		fmt.Println("vector store error:", err)
		os.Exit(1)
	}
	defer vectorClient.Close()
	if vectorClient.Available() {
		logger.Info("leochat: chromadb available", "collection", vectorClient.Collection())
	} else {
		logger.Warn("leochat: chromadb unreachable", "collection", vectorClient.Collection())
	}

	cache, err := llm.NewCache(*providerCacheSize, providers.FromEnv())
	if err != nil {
		logger.Error("leochat: provider cache setup failed", "error", err)
		fmt.Println("provider error:", err)
		os.Exit(1)
	}

	orchestrator := chat.New(st, vectorClient, cache, chat.LoadConfig())

	embedder, err := embedderFromCache(cache)
	if err != nil {
		logger.Error("leochat: embedder setup failed", "error", err)
		fmt.Println("embedder error:", err)
		os.Exit(1)
	}
	pipeline := ingest.NewPipeline(embedder, vectorClient, ingest.LoadConfig())

	server := api.NewServer(st, vectorClient, orchestrator, pipeline, api.Config{DocsDir: *docsDir})

	logger.Info("leochat: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("leochat: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("leochat: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

// embedderFromCache resolves the default model's provider once so ingestion
// shares the same embedding backend as chat.
func embedderFromCache(cache *llm.Cache) (ingest.Embedder, error) {
	provider, err := cache.Provider(llm.DefaultModelConfig())
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func defaultDocsDir() string {
	return filepath.Join("data", "docs")
}
