package suisen

import (
	"context"
)

// EmbeddingProvider generates vector embeddings from text.
// When provided via WithEmbeddingProvider, replaces auto-detected Ollama/OpenAI/hash.
// Uses []float32 (not pgvector.Vector) to avoid forcing the pgvector dependency on
// external consumers. New() wraps it in an adapter for internal use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// FeedbackSignal is a parsed recruiter-feedback reading.
// Sentiment is one of "positive", "negative", or "neutral"; Reward and
// Confidence are in [0, 1].
type FeedbackSignal struct {
	Sentiment  string
	Reward     float64
	Confidence float64
}

// FeedbackParser turns recruiter free text into a reward signal.
// When provided via WithFeedbackParser, replaces the auto-detected
// Ollama/OpenAI/keyword parser. Implementations may call out to an LLM;
// the feedback loop treats any error as neutral, so a parser never has
// to guess when it cannot read the text.
type FeedbackParser interface {
	Parse(ctx context.Context, text string) (FeedbackSignal, error)
}
