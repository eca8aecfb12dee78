package extract

import (
	"context"
	"fmt"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

const minKeepPerBatch = 50

// extractHierarchical handles documents too large even for the pre-filter:
// fixed-size batches are embedded and ranked locally, losers' embeddings are
// discarded immediately so peak memory stays at one batch of vectors, and
// only batch winners reach the final global re-rank. The global centroid is
// a running weighted average of batch centroids.
func (e *Extractor) extractHierarchical(
	ctx context.Context,
	segments []*domain.Segment,
	coverage coverageSet,
	contentType domain.ContentType,
) (winners []*domain.Segment, centroid []float32, embedded int, err error) {
	batchSize := e.opts.HierarchicalBatchSize
	batchCount := (len(segments) + batchSize - 1) / batchSize

	keepPerBatch := e.opts.MaxSegmentsToEmbed / batchCount
	if keepPerBatch < minKeepPerBatch {
		keepPerBatch = minKeepPerBatch
	}

	global := &runningCentroid{}
	winners = make([]*domain.Segment, 0, keepPerBatch*batchCount)

	for batchStart := 0; batchStart < len(segments); batchStart += batchSize {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, embedded, ctxErr
		}
		batchEnd := batchStart + batchSize
		if batchEnd > len(segments) {
			batchEnd = len(segments)
		}
		batch := e.embedCandidates(segments[batchStart:batchEnd], coverage)

		n, embedErr := embedMissing(ctx, e.embedder, batch)
		if embedErr != nil {
			return nil, nil, embedded, fmt.Errorf("embed batch at %d: %w", batchStart, embedErr)
		}
		embedded += n

		batchCentroid, centErr := embeddedCentroid(batch)
		if centErr != nil {
			return nil, nil, embedded, centErr
		}
		if foldErr := global.add(batchCentroid, float64(n)); foldErr != nil {
			return nil, nil, embedded, foldErr
		}

		ranked := rankMMR(batch, batchCentroid, contentType, e.opts)
		keep := keepPerBatch
		if keep > len(ranked) {
			keep = len(ranked)
		}
		winners = append(winners, ranked[:keep]...)
		// Coverage members beyond the keep line still survive; everything
		// else in the batch drops its vector right away.
		for _, seg := range ranked[keep:] {
			if coverage.has(seg.Index) {
				winners = append(winners, seg)
				continue
			}
			seg.Embedding = nil
		}
	}

	return winners, global.normalized(), embedded, nil
}
