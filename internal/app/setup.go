package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/koopa0/kbase/internal/chunk"
	"github.com/koopa0/kbase/internal/config"
	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/embedding"
	"github.com/koopa0/kbase/internal/ingest"
	"github.com/koopa0/kbase/internal/log"
	"github.com/koopa0/kbase/internal/retrieval"
	"github.com/koopa0/kbase/internal/vecstore"
)

// Setup creates and initializes the application. The database connection
// is established eagerly so configuration problems surface at startup
// instead of on the first query. Call Close() to release resources.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := log.New(log.Config{
		Level:     cfg.SlogLevel(),
		JSON:      cfg.LogJSON,
		AddSource: cfg.LogAddSource,
	})

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.provider = vecstore.NewProvider(cfg, logger)

	pool, err := a.provider.Pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool

	store, err := a.provider.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	a.Store = store

	a.Loader = corpus.NewLoader(cfg.KnowledgeDir, cfg.KnowledgeExt, logger)
	a.Splitter = chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)

	a.Embedder = embedding.NewClient(embedding.Config{
		Endpoint:  cfg.EmbeddingEndpoint,
		Model:     cfg.EmbedderModel,
		APIKey:    cfg.GoogleAPIKey,
		Dimension: cfg.EmbeddingDimension,
		Timeout:   cfg.EmbeddingTimeout(),
		BatchSize: cfg.EmbeddingBatchSize,
	}, http.DefaultClient, logger)

	a.Retriever = retrieval.New(a.Embedder, a.Store, a.Loader, cfg, logger)
	a.Syncer = ingest.New(a.Loader, a.Splitter, a.Embedder, a.Store, logger)

	logger.Info("application initialized",
		"knowledge_dir", cfg.KnowledgeDir,
		"embedder_model", cfg.EmbedderModel,
		"embedding_dimension", cfg.EmbeddingDimension,
	)

	return a, nil
}
