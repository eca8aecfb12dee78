package extract

import (
	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// baseScore is the pre-MMR relevance of one segment: centroid similarity
// shaped by the structural prior and the content-type weight.
func baseScore(seg *domain.Segment, centroid []float32, contentType domain.ContentType, o Options) float64 {
	if len(seg.Embedding) == 0 || len(centroid) == 0 {
		return 0
	}
	return cosine(seg.Embedding, centroid) * seg.PositionWeight * contentTypeWeight(seg, contentType, o)
}

// rankMMR orders embedded segments by greedy maximal marginal relevance and
// overwrites each SalienceScore with 1 - rank/total, so the stored score is a
// normalized priority in [0,1) that strictly decreases with rank. Segments
// without an embedding cannot be ranked and are returned untouched.
func rankMMR(segments []*domain.Segment, centroid []float32, contentType domain.ContentType, o Options) []*domain.Segment {
	candidates := make([]*domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Embedding) > 0 {
			candidates = append(candidates, seg)
		}
	}
	if len(candidates) == 0 || len(centroid) == 0 {
		return nil
	}

	relevance := make([]float64, len(candidates))
	for i, seg := range candidates {
		relevance[i] = baseScore(seg, centroid, contentType, o)
		seg.SalienceScore = relevance[i]
	}

	lambda := o.MMRLambda
	picked := make([]bool, len(candidates))
	// maxSim[i] is candidate i's highest similarity to any segment already
	// ranked; updated incrementally after every pick.
	maxSim := make([]float64, len(candidates))

	ranked := make([]*domain.Segment, 0, len(candidates))
	total := len(candidates)

	for len(ranked) < total {
		best := -1
		bestScore := 0.0
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := lambda*relevance[i] - (1.0-lambda)*maxSim[i]
			// Strict comparison in encounter order breaks ties toward the
			// earlier segment.
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}

		picked[best] = true
		chosen := candidates[best]
		// Rank is 1-based so the top segment scores 1-1/total and the last
		// scores 0, keeping every stored score inside [0,1).
		chosen.SalienceScore = 1.0 - float64(len(ranked)+1)/float64(total)
		ranked = append(ranked, chosen)

		for i := range candidates {
			if picked[i] {
				continue
			}
			sim := cosine(candidates[i].Embedding, chosen.Embedding)
			if sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return ranked
}

// targetCount clamps the proportional extraction size to the configured
// bounds.
func targetCount(totalSegments int, o Options) int {
	target := int(float64(totalSegments) * o.ExtractionRatio)
	if target < o.MinSegments {
		target = o.MinSegments
	}
	if o.MaxSegments > 0 && target > o.MaxSegments {
		target = o.MaxSegments
	}
	return target
}
