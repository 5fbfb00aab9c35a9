// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: the
// database pool, the corpus loader, the embedding client, and the
// retrieval and sync orchestrators built on top of them.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kbase/internal/chunk"
	"github.com/koopa0/kbase/internal/config"
	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/embedding"
	"github.com/koopa0/kbase/internal/ingest"
	"github.com/koopa0/kbase/internal/retrieval"
	"github.com/koopa0/kbase/internal/vecstore"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	Loader    *corpus.Loader
	Splitter  *chunk.Splitter
	Embedder  *embedding.Client
	Store     *vecstore.Store
	Retriever *retrieval.Retriever
	Syncer    *ingest.Syncer

	provider *vecstore.Provider
}

// Close releases all resources held by the application.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.provider != nil {
		a.provider.Close()
	}

	return nil
}
