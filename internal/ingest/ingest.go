// Package ingest rebuilds the vector store from the knowledge corpus.
// A sync run reads every document fresh, chunks it, embeds the chunks,
// and swaps the store contents wholesale.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/koopa0/kbase/internal/chunk"
	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/vecstore"
)

// Loader provides fresh corpus reads and cache invalidation.
type Loader interface {
	Reload(ctx context.Context) ([]corpus.Document, error)
	Invalidate()
}

// Splitter cuts a document body into passages carrying its metadata.
type Splitter interface {
	Split(text, source, title string) []chunk.Passage
}

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store replaces the persisted passage set.
type Store interface {
	ReplaceAll(ctx context.Context, entries []vecstore.Entry) error
}

// Syncer runs the full corpus-to-store pipeline.
type Syncer struct {
	loader   Loader
	splitter Splitter
	embedder Embedder
	store    Store
	logger   *slog.Logger
}

// New creates a Syncer wired to the given pipeline stages.
func New(loader Loader, splitter Splitter, embedder Embedder, store Store, logger *slog.Logger) *Syncer {
	return &Syncer{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Stats summarizes a completed sync run.
type Stats struct {
	Documents int `json:"documents"`
	Passages  int `json:"passages"`
}

// Run rebuilds the store from the directory contents. Any stage failing
// fails the whole run; the store may be left empty or partial in that
// case and the operator should re-run the sync. On success the corpus
// cache is invalidated so the next load reflects the synced directory.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	docs, err := s.loader.Reload(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load corpus: %w", err)
	}

	var passages []chunk.Passage
	for _, doc := range docs {
		passages = append(passages, s.splitter.Split(doc.Body, doc.Source, doc.Title)...)
	}
	s.logger.Info("corpus chunked",
		"documents", len(docs),
		"passages", len(passages))

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return Stats{}, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return Stats{}, fmt.Errorf("embed passages: got %d vectors for %d passages", len(vectors), len(passages))
	}

	entries := make([]vecstore.Entry, len(passages))
	for i, p := range passages {
		entries[i] = vecstore.Entry{
			Content:   p.Text,
			Source:    p.Source,
			Title:     p.Title,
			Embedding: vectors[i],
		}
	}

	if err := s.store.ReplaceAll(ctx, entries); err != nil {
		return Stats{}, fmt.Errorf("replace store contents: %w", err)
	}

	s.loader.Invalidate()

	stats := Stats{Documents: len(docs), Passages: len(passages)}
	s.logger.Info("sync complete",
		"documents", stats.Documents,
		"passages", stats.Passages)
	return stats, nil
}
