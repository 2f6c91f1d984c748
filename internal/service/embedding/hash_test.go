package embedding

import (
	"context"
	"math"
	"testing"
)

func TestHashProviderDeterministic(t *testing.T) {
	p := NewHashProvider(768)

	a, err := p.Embed(context.Background(), "candidate alice. skills: cuda, go.")
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Embed(context.Background(), "candidate alice. skills: cuda, go.")
	if err != nil {
		t.Fatal(err)
	}

	as, bs := a.Slice(), b.Slice()
	if len(as) != 768 {
		t.Fatalf("expected 768-dim vector, got %d", len(as))
	}
	for i := range as {
		if as[i] != bs[i] {
			t.Fatalf("element %d differs between identical inputs: %f vs %f", i, as[i], bs[i])
		}
	}
}

func TestHashProviderUnitNorm(t *testing.T) {
	p := NewHashProvider(768)

	vec, err := p.Embed(context.Background(), "any text at all")
	if err != nil {
		t.Fatal(err)
	}
	if norm := vectorNorm(vec.Slice()); math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("expected unit-length vector, got norm %f", norm)
	}
}

func TestHashProviderDistinctTexts(t *testing.T) {
	p := NewHashProvider(768)

	a, err := p.Embed(context.Background(), "cuda kernels")
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Embed(context.Background(), "react components")
	if err != nil {
		t.Fatal(err)
	}

	// Cosine of two hash vectors concentrates near zero for 768 dims;
	// anything below 0.5 proves the texts did not collide.
	var dot float64
	as, bs := a.Slice(), b.Slice()
	for i := range as {
		dot += float64(as[i]) * float64(bs[i])
	}
	if math.Abs(dot) > 0.5 {
		t.Errorf("distinct texts produced near-identical vectors, cosine %f", dot)
	}
}

func TestHashProviderBatch(t *testing.T) {
	p := NewHashProvider(32)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}

	single, err := p.Embed(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0].Slice()[0] != single.Slice()[0] {
		t.Error("batch element must match single-embed output for the same text")
	}
}

func TestNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
			t.Errorf("expected (0.6, 0.8), got (%f, %f)", v[0], v[1])
		}
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		v := Normalize([]float32{0, 0, 0})
		for i, x := range v {
			if x != 0 {
				t.Errorf("element %d: expected 0, got %f", i, x)
			}
		}
	})
}
