package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// ollamaConcurrency bounds parallel requests to Ollama. Kept low so a
// batch re-embed does not saturate a single local GPU.
const ollamaConcurrency = 4

// OllamaProvider generates embeddings through a local Ollama server.
// Preferred in production deployments where candidate profiles must not
// leave the network.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	dimensions int
}

// NewOllamaProvider creates a provider for Ollama's embedding API. The
// model must be an embedding model ("nomic-embed-text",
// "mxbai-embed-large") and dimensions its native output size.
func NewOllamaProvider(baseURL, model string, dimensions int) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dimensions: dimensions,
	}
}

// Dimensions returns the model's native vector size.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates one embedding vector, normalized to unit length
// (Ollama models do not guarantee unit output).
func (p *OllamaProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("ollama: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pgvector.Vector{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(msg))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return pgvector.Vector{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("ollama: empty embedding returned")
	}

	return pgvector.NewVector(Normalize(result.Embedding)), nil
}

// EmbedBatch embeds multiple texts. Ollama has no batch endpoint, so the
// texts fan out over a bounded errgroup; the first failure cancels the
// rest of the batch.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	switch len(texts) {
	case 0:
		return nil, nil
	case 1:
		vec, err := p.Embed(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return []pgvector.Vector{vec}, nil
	}

	vecs := make([]pgvector.Vector, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ollamaConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := p.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("ollama: batch item %d: %w", i, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}
