package extract

import (
	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// topicAnchor is one cluster center from farthest-point selection. The token
// set of the originating segment backs the word-overlap proxy for segments
// that have no embedding yet.
type topicAnchor struct {
	vector []float32
	tokens map[string]struct{}
}

// selectTopicAnchors runs greedy farthest-point selection over the embedded
// sample: start from the first vector, then repeatedly add the segment whose
// minimum cosine distance to all chosen anchors is largest. This spreads
// anchors across themes instead of collapsing onto the dominant one.
func selectTopicAnchors(sample []*domain.Segment, k int) []topicAnchor {
	embedded := make([]*domain.Segment, 0, len(sample))
	for _, seg := range sample {
		if len(seg.Embedding) > 0 {
			embedded = append(embedded, seg)
		}
	}
	if len(embedded) == 0 || k < 1 {
		return nil
	}
	if k > len(embedded) {
		k = len(embedded)
	}

	anchors := make([]topicAnchor, 0, k)
	addAnchor := func(seg *domain.Segment) {
		anchors = append(anchors, topicAnchor{
			vector: l2Normalize(seg.Embedding),
			tokens: toTokenSet(seg.Text),
		})
	}
	addAnchor(embedded[0])

	// minDist[i] tracks each candidate's distance to its nearest anchor.
	minDist := make([]float64, len(embedded))
	for i, seg := range embedded {
		minDist[i] = 1.0 - cosine(seg.Embedding, anchors[0].vector)
	}

	for len(anchors) < k {
		best := -1
		bestDist := 0.0
		for i := range embedded {
			if minDist[i] > bestDist {
				bestDist = minDist[i]
				best = i
			}
		}
		if best < 0 {
			break
		}
		addAnchor(embedded[best])
		newAnchor := anchors[len(anchors)-1]
		for i, seg := range embedded {
			d := 1.0 - cosine(seg.Embedding, newAnchor.vector)
			if d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return anchors
}

// maxAnchorAffinity scores a segment against the anchor set: cosine when the
// segment is embedded, word overlap with the anchor's source text otherwise.
func maxAnchorAffinity(seg *domain.Segment, anchors []topicAnchor) float64 {
	if len(anchors) == 0 {
		return 0
	}
	best := 0.0
	if len(seg.Embedding) > 0 {
		for _, anchor := range anchors {
			if sim := cosine(seg.Embedding, anchor.vector); sim > best {
				best = sim
			}
		}
		return best
	}
	tokens := toTokenSet(seg.Text)
	for _, anchor := range anchors {
		if sim := tokenOverlap(anchor.tokens, tokens); sim > best {
			best = sim
		}
	}
	return best
}
