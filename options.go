package suisen

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port              int
	databaseURL       string
	logger            *slog.Logger
	version           string
	embeddingProvider EmbeddingProvider
	feedbackParser    FeedbackParser
	extraMigrations   []fs.FS
}

// WithPort overrides the TCP port (otherwise SUISEN_PORT or its default).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the Postgres connection string (otherwise DATABASE_URL).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger. Defaults to slog's default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEmbeddingProvider replaces the auto-detected embedding provider (Ollama/OpenAI/hash).
func WithEmbeddingProvider(p EmbeddingProvider) Option {
	return func(o *resolvedOptions) { o.embeddingProvider = p }
}

// WithFeedbackParser replaces the auto-detected feedback parser (Ollama/OpenAI/keyword).
// Only the last call wins — if multiple are registered, only the last takes effect.
func WithFeedbackParser(p FeedbackParser) Option {
	return func(o *resolvedOptions) { o.feedbackParser = p }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run after the
// built-in migrations. Multiple filesystems may be registered; they are applied in
// registration order. The FS must contain sequentially numbered SQL files.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
