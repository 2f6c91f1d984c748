package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/crypto/blake2b"
)

// HashProvider derives embeddings from text with the BLAKE2b XOF instead
// of a model. Equal texts always map to the same unit vector; distinct
// texts map to effectively uncorrelated ones. Selected when no embedding
// backend is reachable so search, clustering, and the bandit pipeline
// stay functional offline, and used by tests that need stable vectors.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a deterministic hash-based provider.
func NewHashProvider(dims int) *HashProvider {
	return &HashProvider{dims: dims}
}

// Dimensions returns the embedding vector size.
func (p *HashProvider) Dimensions() int {
	return p.dims
}

// Embed maps text to a unit vector. The mapping is stable across runs
// and platforms: byte order is fixed big-endian.
func (p *HashProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	buf := make([]byte, 4*p.dims)

	xof, err := blake2b.NewXOF(uint32(len(buf)), nil) //nolint:gosec // dims is bounded by config validation
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding: init hash: %w", err)
	}
	if _, err := xof.Write([]byte(text)); err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding: hash text: %w", err)
	}
	if _, err := io.ReadFull(xof, buf); err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding: expand hash: %w", err)
	}

	vec := make([]float32, p.dims)
	for i := range vec {
		u := binary.BigEndian.Uint32(buf[4*i:])
		vec[i] = float32(u)/float32(math.MaxUint32)*2 - 1
	}
	return pgvector.NewVector(Normalize(vec)), nil
}

// EmbedBatch hashes each text independently.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([]pgvector.Vector, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
