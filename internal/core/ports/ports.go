package ports

import (
	"context"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// Embedder is the embedding gateway boundary. All vectors returned for one
// document must share the same length; batch calls may be chunked internally
// by the gateway. Init is idempotent and may lazily load a model.
type Embedder interface {
	Init(ctx context.Context) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SectionParser turns converted text into the section/segment input shape.
// Sanitize controls whitespace/control-character cleanup; the pipelined
// extractor retries a failed parse once with sanitize disabled.
type SectionParser interface {
	Parse(text string, sanitize bool) (*domain.ParsedDocument, error)
}

// ChunkQueue transports converted document chunks to the pipelined extractor.
type ChunkQueue interface {
	PublishChunk(ctx context.Context, chunk domain.Chunk) error
	SubscribeChunks(ctx context.Context, handler func(context.Context, domain.Chunk) error) error
}

// DocumentExtractor is the inbound contract for one-shot batch extraction
// and query-aware retrieval. Retrieve runs the same extraction and then
// re-orders the salient head by similarity to the query; QuerySimilarity is
// populated only on that path.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc *domain.ParsedDocument) (*domain.ExtractionResult, error)
	Retrieve(ctx context.Context, doc *domain.ParsedDocument, query string) (*domain.ExtractionResult, error)
}

// StreamSession is one pipelined extraction in progress. Append never blocks
// on embedding; Finalize waits (bounded) for the background task to drain and
// returns a partial result rather than hanging.
type StreamSession interface {
	Append(ctx context.Context, chunk domain.Chunk) error
	Finalize(ctx context.Context) (*domain.ExtractionResult, error)
}

// StreamExtractor opens pipelined extraction sessions.
type StreamExtractor interface {
	NewSession(docID string, contentType domain.ContentType, expectedChunks int) (StreamSession, error)
}
