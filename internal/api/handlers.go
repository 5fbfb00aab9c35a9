package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/ingest"
	"github.com/koopa0/kbase/internal/retrieval"
)

// Searcher answers knowledge base queries.
type Searcher interface {
	Search(ctx context.Context, query string) []retrieval.Passage
}

// Syncer rebuilds the vector store from the corpus directory.
type Syncer interface {
	Run(ctx context.Context) (ingest.Stats, error)
}

// DocumentLister provides the loaded corpus for the listing endpoint.
type DocumentLister interface {
	Load(ctx context.Context) ([]corpus.Document, error)
}

// Pinger checks database connectivity for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Passages []retrieval.Passage `json:"passages"`
	Count    int                 `json:"count"`
}

type searchHandler struct {
	retriever Searcher
	maxBytes  int64
	logger    *slog.Logger
}

func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "query_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a query field", h.logger)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		return
	}

	passages := h.retriever.Search(r.Context(), query)
	if passages == nil {
		passages = []retrieval.Passage{}
	}

	writeJSON(w, http.StatusOK, searchResponse{Passages: passages, Count: len(passages)}, h.logger)
}

type syncHandler struct {
	syncer Syncer
	logger *slog.Logger
}

func (h *syncHandler) sync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.syncer.Run(r.Context())
	if err != nil {
		h.logger.Error("sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync_failed", "knowledge base sync failed, retry the operation", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}

type documentInfo struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

type documentsHandler struct {
	loader DocumentLister
	logger *slog.Logger
}

func (h *documentsHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.loader.Load(r.Context())
	if err != nil {
		h.logger.Error("corpus load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "corpus_unavailable", "knowledge corpus could not be read", h.logger)
		return
	}

	infos := make([]documentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, documentInfo{
			Source: doc.Source,
			Title:  doc.Title,
			Length: len(doc.Body),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": infos,
		"count":     len(infos),
	}, h.logger)
}

// health is a liveness probe endpoint for container orchestrators.
func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports 200 only when the database answers a ping.
func readiness(pinger Pinger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pinger == nil {
			http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
			return
		}
		if err := pinger.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", "error", err)
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
}
