package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// vectorNorm returns the L2 length of a vector.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func newOllamaTestServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Non-unit-length output, so normalization is observable.
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(i) * 0.001
		}
		if err := json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaEmbedNormalizes(t *testing.T) {
	server := newOllamaTestServer(t, 768)
	p := NewOllamaProvider(server.URL, "test-model", 768)

	if p.Dimensions() != 768 {
		t.Errorf("expected 768, got %d", p.Dimensions())
	}

	vec, err := p.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatal(err)
	}
	slice := vec.Slice()
	if len(slice) != 768 {
		t.Errorf("expected 768-dim vector, got %d", len(slice))
	}
	if norm := vectorNorm(slice); math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("expected unit-length vector, got norm %f", norm)
	}
	// Normalization preserves direction: element 200 is twice element 100.
	if slice[100] == 0 || math.Abs(float64(slice[200]/slice[100])-2.0) > 1e-4 {
		t.Errorf("expected slice[200]/slice[100] ≈ 2, got %f/%f", slice[200], slice[100])
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	server := newOllamaTestServer(t, 32)
	p := NewOllamaProvider(server.URL, "test-model", 32)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e", "f"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 6 {
		t.Fatalf("expected 6 vectors, got %d", len(vecs))
	}
	for i, vec := range vecs {
		if len(vec.Slice()) != 32 {
			t.Errorf("vector %d: expected 32-dim, got %d", i, len(vec.Slice()))
		}
	}

	vecs, err = p.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty batch, got %v", vecs)
	}
}

func TestOllamaEmbedBatchStopsOnFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "test-model", 8)
	_, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls.Load() == 0 {
		t.Error("expected at least one request")
	}
}

func TestOllamaEmbedErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}},
		{"empty embedding", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: nil})
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			p := NewOllamaProvider(server.URL, "test-model", 768)
			if _, err := p.Embed(context.Background(), "test"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
