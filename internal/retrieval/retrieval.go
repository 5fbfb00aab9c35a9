// Package retrieval answers queries against the knowledge base. It tries
// vector similarity search first and degrades to a lexical scan of the
// cached corpus when the vector path fails, times out, or comes back empty.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/koopa0/kbase/internal/config"
	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/vecstore"
)

// Passage is one retrieved result. On the vector path Content is a chunk;
// on the fallback path it is a whole document body and Similarity is zero.
type Passage struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Similarity float32 `json:"similarity,omitempty"`
}

// Path identifies which search strategy produced a result set.
type Path string

const (
	PathVector   Path = "vector"
	PathFallback Path = "fallback"
)

// Result carries the passages together with the path that produced them.
type Result struct {
	Path     Path
	Passages []Passage
}

// Embedder turns query text into an embedding vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs nearest-neighbor search over stored passages.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]vecstore.Record, error)
}

// DocumentSource provides the corpus for the lexical fallback.
type DocumentSource interface {
	Load(ctx context.Context) ([]corpus.Document, error)
}

// Retriever orchestrates the vector and fallback search paths.
type Retriever struct {
	embedder Embedder
	store    Searcher
	docs     DocumentSource

	topK       int
	timeout    time.Duration
	maxResults int
	minTermLen int

	logger *slog.Logger
}

// New creates a Retriever wired to the given collaborators. Zero or
// negative tuning values in cfg fall back to sensible defaults.
func New(embedder Embedder, store Searcher, docs DocumentSource, cfg *config.Config, logger *slog.Logger) *Retriever {
	r := &Retriever{
		embedder:   embedder,
		store:      store,
		docs:       docs,
		topK:       cfg.VectorTopK,
		timeout:    cfg.VectorTimeout(),
		maxResults: cfg.FallbackMaxResults,
		minTermLen: cfg.FallbackMinTermLength,
		logger:     logger,
	}
	if r.topK <= 0 {
		r.topK = config.DefaultVectorTopK
	}
	if r.timeout <= 0 {
		r.timeout = config.DefaultVectorTimeoutSecs * time.Second
	}
	if r.maxResults <= 0 {
		r.maxResults = config.DefaultFallbackMaxResults
	}
	return r
}

// Search returns passages relevant to query. It never returns an error:
// every failure degrades to the lexical fallback or an empty result.
func (r *Retriever) Search(ctx context.Context, query string) []Passage {
	return r.retrieve(ctx, query).Passages
}

// retrieve runs the full strategy and reports which path produced the
// result, so callers and tests can distinguish degraded answers.
func (r *Retriever) retrieve(ctx context.Context, query string) Result {
	passages, err := r.vectorSearch(ctx, query)
	switch {
	case err != nil:
		r.logger.Warn("vector retrieval failed, using lexical fallback",
			"error", err)
	case len(passages) == 0:
		r.logger.Debug("vector retrieval returned nothing, using lexical fallback")
	default:
		return Result{Path: PathVector, Passages: passages}
	}

	docs, err := r.docs.Load(ctx)
	if err != nil {
		r.logger.Error("corpus load failed during fallback", "error", err)
		return Result{Path: PathFallback}
	}

	return Result{
		Path:     PathFallback,
		Passages: lexicalSearch(query, docs, r.maxResults, r.minTermLen),
	}
}

// vectorSearch embeds the query and runs nearest-neighbor search, both
// bounded by the retrieval deadline.
func (r *Retriever) vectorSearch(ctx context.Context, query string) ([]Passage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	embedding, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	records, err := r.store.Search(ctx, embedding, r.topK)
	if err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(records))
	for _, rec := range records {
		passages = append(passages, Passage{
			Content:    rec.Content,
			Source:     rec.Source,
			Title:      rec.Title,
			Similarity: rec.Similarity,
		})
	}
	return passages, nil
}
