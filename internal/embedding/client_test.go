package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/kbase/internal/log"
)

// newTestServer returns an httptest server that answers embedContent
// requests with a vector derived from the input text, so tests can verify
// input/output correspondence.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			OutputDimensionality int `json:"outputDimensionality"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Content.Parts) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		text := req.Content.Parts[0].Text

		// First component encodes the text length so callers can map
		// vectors back to inputs.
		vec := make([]float32, req.OutputDimensionality)
		vec[0] = float32(len(text))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": vec},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, dimension, batchSize int) *Client {
	return NewClient(Config{
		Endpoint:  srv.URL,
		Model:     "gemini-embedding-001",
		APIKey:    "test-key",
		Dimension: dimension,
		Timeout:   5 * time.Second,
		BatchSize: batchSize,
	}, srv.Client(), log.NewNop())
}

func TestEmbedOne(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(srv, 768, 5)

	vec, err := client.EmbedOne(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 768 {
		t.Errorf("got %d dimensions, want 768", len(vec))
	}
	if vec[0] != float32(len("hello world")) {
		t.Errorf("vector does not correspond to input text")
	}
}

func TestEmbedOne_Non2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "quota exceeded"}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv, 768, 5)

	_, err := client.EmbedOne(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error %T is not *ServiceError", err)
	}
	if svcErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", svcErr.StatusCode)
	}
	if !strings.Contains(svcErr.Body, "quota exceeded") {
		t.Errorf("body %q should carry the upstream payload", svcErr.Body)
	}
}

func TestEmbedOne_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected": "shape"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv, 768, 5)

	_, err := client.EmbedOne(context.Background(), "text")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("malformed payload should yield *ServiceError, got %v", err)
	}
}

func TestEmbedOne_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{1, 2, 3}},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv, 768, 5)

	_, err := client.EmbedOne(context.Background(), "text")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("dimension mismatch should yield *ServiceError, got %v", err)
	}
	if !strings.Contains(svcErr.Body, "768") {
		t.Errorf("error should mention expected dimension: %q", svcErr.Body)
	}
}

func TestEmbedOne_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Config{
		Endpoint:  srv.URL,
		Model:     "gemini-embedding-001",
		APIKey:    "test-key",
		Dimension: 768,
		Timeout:   50 * time.Millisecond,
		BatchSize: 5,
	}, srv.Client(), log.NewNop())

	start := time.Now()
	_, err := client.EmbedOne(context.Background(), "text")
	elapsed := time.Since(start)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("timeout should yield *ServiceError, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("call took %s, timeout did not fire", elapsed)
	}
}

func TestEmbedMany_PreservesOrder(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(srv, 768, 5)

	// 12 texts: not evenly divisible by the batch size of 5
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1) // length i+1 identifies the text
	}

	vecs, err := client.EmbedMany(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}

	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if vec[0] != float32(i+1) {
			t.Errorf("vecs[%d] corresponds to text of length %v, want %d", i, vec[0], i+1)
		}
	}
}

func TestEmbedMany_BatchSizeOne(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(srv, 768, 1)

	vecs, err := client.EmbedMany(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	for i, vec := range vecs {
		if vec[0] != float32(i+1) {
			t.Errorf("vecs[%d] out of order", i)
		}
	}
}

func TestEmbedMany_EmptyInput(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(srv, 768, 5)

	vecs, err := client.EmbedMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedMany(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("got %d vectors for empty input, want nil", len(vecs))
	}
}

func TestEmbedMany_OneFailureFailsBatch(t *testing.T) {
	var mu sync.Mutex
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()

		if n == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		vec := make([]float32, 768)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": vec},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv, 768, 5)

	_, err := client.EmbedMany(context.Background(), []string{"a", "b", "c", "d"})
	if err == nil {
		t.Fatal("one failing text must fail the whole operation")
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Errorf("error chain should carry *ServiceError, got %v", err)
	}
}
