package extract

import (
	"context"
	"fmt"

	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
)

// embedMissing fetches vectors for every segment that has none yet and
// assigns them in place. Returns how many segments were embedded. A vector
// count or dimension violation from the gateway is fatal for the document.
func embedMissing(ctx context.Context, embedder ports.Embedder, segments []*domain.Segment) (int, error) {
	pending := make([]*domain.Segment, 0, len(segments))
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Embedding) > 0 {
			continue
		}
		pending = append(pending, seg)
		texts = append(texts, seg.Text)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d segments: %w", len(pending), err)
	}
	if len(vectors) != len(pending) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed segments",
			fmt.Errorf("vectors/segments mismatch: %d/%d", len(vectors), len(pending)),
		)
	}
	if _, err := checkDimensions(vectors); err != nil {
		return 0, err
	}

	for i, seg := range pending {
		seg.Embedding = vectors[i]
	}
	return len(pending), nil
}
