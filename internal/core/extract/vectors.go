package extract

import (
	"fmt"
	"math"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func l2Normalize(v []float32) []float32 {
	n := norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// checkDimensions enforces the gateway contract that every vector in one
// document has the same length. A mismatch is fatal for the document; vectors
// are never silently truncated.
func checkDimensions(vectors [][]float32) (int, error) {
	dim := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return 0, domain.WrapError(
				domain.ErrDimensionMismatch,
				"check embedding dimensions",
				fmt.Errorf("got vectors of length %d and %d", dim, len(v)),
			)
		}
	}
	return dim, nil
}

// embeddedCentroid is the L2-normalized mean of all segment embeddings.
// Returns nil when no segment carries a vector.
func embeddedCentroid(segments []*domain.Segment) ([]float32, error) {
	var sum []float32
	count := 0
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float32, len(seg.Embedding))
		}
		if len(seg.Embedding) != len(sum) {
			return nil, domain.WrapError(
				domain.ErrDimensionMismatch,
				"compute centroid",
				fmt.Errorf("segment %d has dimension %d, want %d", seg.Index, len(seg.Embedding), len(sum)),
			)
		}
		for i, x := range seg.Embedding {
			sum[i] += x
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}
	for i := range sum {
		sum[i] /= float32(count)
	}
	return l2Normalize(sum), nil
}

// runningCentroid folds a batch centroid into a weighted global mean. The
// result is unnormalized; renormalize once all batches are folded.
type runningCentroid struct {
	sum    []float32
	weight float64
}

func (rc *runningCentroid) add(centroid []float32, weight float64) error {
	if len(centroid) == 0 || weight <= 0 {
		return nil
	}
	if rc.sum == nil {
		rc.sum = make([]float32, len(centroid))
	}
	if len(centroid) != len(rc.sum) {
		return domain.WrapError(
			domain.ErrDimensionMismatch,
			"fold batch centroid",
			fmt.Errorf("batch centroid dimension %d, want %d", len(centroid), len(rc.sum)),
		)
	}
	for i, x := range centroid {
		rc.sum[i] += x * float32(weight)
	}
	rc.weight += weight
	return nil
}

func (rc *runningCentroid) normalized() []float32 {
	if rc.sum == nil || rc.weight == 0 {
		return nil
	}
	out := make([]float32, len(rc.sum))
	for i, x := range rc.sum {
		out[i] = x / float32(rc.weight)
	}
	return l2Normalize(out)
}
