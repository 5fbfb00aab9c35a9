// Package vecstore persists passage embeddings in PostgreSQL with
// pgvector and serves nearest-neighbor similarity queries.
//
// The store has exactly one mutation path: ReplaceAll, which deletes
// every row and inserts the new generation. There is no merge and no
// transactional swap; a search arriving mid-replace may see an empty or
// partially repopulated store, and the retrieval layer's fallback covers
// that window.
package vecstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ErrStore indicates a vector store query or mutation failure.
var ErrStore = errors.New("vector store")

// Entry is a passage plus its embedding, ready to persist.
type Entry struct {
	Content   string
	Source    string
	Title     string
	Embedding []float32
}

// Record is a stored passage returned from a similarity search.
type Record struct {
	ID         uuid.UUID
	Content    string
	Source     string
	Title      string
	Similarity float32
}

// Store manages passage persistence and similarity search.
// Store is safe for concurrent use.
type Store struct {
	queries       Querier
	minSimilarity float32
	logger        *slog.Logger
}

// New creates a Store. minSimilarity of 0 accepts any nearest neighbor,
// matching the default retrieval behavior; a positive value filters
// results below that cosine similarity.
func New(queries Querier, minSimilarity float32, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, minSimilarity: minSimilarity, logger: logger}
}

// ReplaceAll replaces the store's entire contents with the given entries:
// delete all rows, then bulk-insert. The empty window in between is
// accepted; callers treat a failed replace as "re-run the whole sync".
func (s *Store) ReplaceAll(ctx context.Context, entries []Entry) error {
	if err := s.queries.DeleteAllPassages(ctx); err != nil {
		return fmt.Errorf("%w: clearing store: %v", ErrStore, err)
	}

	rows := make([]InsertPassageParams, len(entries))
	for i, e := range entries {
		rows[i] = InsertPassageParams{
			ID:        uuid.New(),
			Source:    e.Source,
			Title:     e.Title,
			Content:   e.Content,
			Embedding: pgvector.NewVector(e.Embedding),
		}
	}

	if err := s.queries.InsertPassages(ctx, rows); err != nil {
		return fmt.Errorf("%w: inserting %d passages: %v", ErrStore, len(rows), err)
	}

	s.logger.Info("vector store replaced", "passages", len(rows))
	return nil
}

// Search returns up to k stored records nearest to the query embedding,
// similarity descending.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]Record, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrStore, k)
	}

	rows, err := s.queries.SearchPassages(ctx, pgvector.NewVector(embedding), int32(k), s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStore, err)
	}

	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = Record{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Source,
			Title:      r.Title,
			Similarity: r.Similarity,
		}
	}
	return records, nil
}

// Count returns the number of stored passages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountPassages(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStore, err)
	}
	return count, nil
}
