// Package embedding converts text into fixed-length vectors via the
// Gemini embedContent HTTP API.
//
// The client is deliberately thin: one typed request/response pair, a
// per-call timeout, and bounded batching. It does not retry; retry
// policy belongs to callers, and the retrieval path prefers degrading to
// its lexical fallback over waiting on a flaky upstream.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ServiceError reports an embedding service failure: a non-success HTTP
// status, a timeout, or a malformed response payload.
type ServiceError struct {
	StatusCode int    // upstream HTTP status, 0 when the call never completed
	Body       string // upstream response body, truncated
	Err        error  // underlying transport error, if any
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding service: %v", e.Err)
	}
	return fmt.Sprintf("embedding service: status %d: %s", e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// maxErrorBodyBytes caps how much of an upstream error body is carried in
// a ServiceError.
const maxErrorBodyBytes = 2048

// Config holds the settings for the embedding client.
type Config struct {
	// Endpoint is the API base URL; the model name and action are appended.
	Endpoint string

	// Model is the embedding model identifier.
	Model string

	// APIKey authenticates requests.
	APIKey string

	// Dimension is the requested output dimensionality.
	Dimension int

	// Timeout bounds each individual HTTP call.
	Timeout time.Duration

	// BatchSize is the number of texts embedded concurrently per batch.
	BatchSize int
}

// Client calls the Gemini embedContent endpoint.
// Client is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case
// http.DefaultClient is used; per-call timeouts come from cfg.Timeout, not
// the http.Client.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// embedRequest is the embedContent request payload.
type embedRequest struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	OutputDimensionality int `json:"outputDimensionality"`
}

// embedResponse is the embedContent response payload.
type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedOne returns the embedding vector for a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var payload embedRequest
	payload.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	payload.OutputDimensionality = c.cfg.Dimension

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent?key=%s", c.cfg.Endpoint, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &ServiceError{Err: fmt.Errorf("timeout after %s: %w", c.cfg.Timeout, err)}
		}
		return nil, &ServiceError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: "malformed response payload", Err: err}
	}

	vec := parsed.Embedding.Values
	if len(vec) == 0 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: "response contains no embedding values"}
	}
	if c.cfg.Dimension > 0 && len(vec) != c.cfg.Dimension {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("expected %d dimensions, got %d", c.cfg.Dimension, len(vec)),
		}
	}

	return vec, nil
}

// EmbedMany returns embedding vectors for all texts, in input order.
// Texts are processed in batches of the configured size: calls within a
// batch run concurrently, batches run sequentially. One failing text
// fails the whole operation.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	batches := (len(texts) + c.cfg.BatchSize - 1) / c.cfg.BatchSize

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		c.logger.Debug("embedding batch",
			"batch", start/c.cfg.BatchSize+1,
			"of", batches,
			"size", end-start)

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := c.EmbedOne(gCtx, texts[i])
				if err != nil {
					return fmt.Errorf("embedding text %d: %w", i, err)
				}
				results[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}
