package embedding

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/suisen/internal/telemetry"
)

var embeddingMeter = telemetry.Meter("suisen/embedding")

// Metered wraps a provider so every call records its latency and batch
// size. With no meter provider configured the wrapper is free, so it is
// always applied.
func Metered(p Provider) Provider {
	return &meteredProvider{inner: p}
}

type meteredProvider struct {
	inner Provider
}

func (m *meteredProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	start := time.Now()
	vec, err := m.inner.Embed(ctx, text)
	m.record(ctx, start, 1, err)
	return vec, err
}

func (m *meteredProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	start := time.Now()
	vecs, err := m.inner.EmbedBatch(ctx, texts)
	m.record(ctx, start, len(texts), err)
	return vecs, err
}

func (m *meteredProvider) Dimensions() int {
	return m.inner.Dimensions()
}

func (m *meteredProvider) record(ctx context.Context, start time.Time, size int, err error) {
	attrs := otelmetric.WithAttributes(
		attribute.Int("batch_size", size),
		attribute.Bool("error", err != nil),
	)
	if hist, herr := embeddingMeter.Float64Histogram("suisen.embedding.duration",
		otelmetric.WithUnit("ms")); herr == nil {
		hist.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}
}
