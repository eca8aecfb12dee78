package extract

import (
	"fmt"
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func TestRankMMRPrefersDiverseSegment(t *testing.T) {
	o := DefaultOptions()
	centroid := []float32{1, 0, 0}

	// Equal centroid relevance for all three; B is nearly a duplicate of A
	// while C covers a different direction. After A is picked, C must
	// outrank B.
	text := "Equal length text so the quality factor cancels out fully."
	a := embeddedSentence(0, text, []float32{0.6, 0.8, 0})
	b := embeddedSentence(1, text, []float32{0.6, 0.76, 0.2498})
	c := embeddedSentence(2, text, []float32{0.6, 0, 0.8})

	ranked := rankMMR([]*domain.Segment{a, b, c}, centroid, domain.ContentUnknown, o)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked segments, got %d", len(ranked))
	}
	if ranked[0] != a {
		t.Fatalf("expected encounter-order tie break to pick segment 0 first, got %d", ranked[0].Index)
	}
	if ranked[1] != c {
		t.Fatalf("expected diverse segment ranked second, got %d", ranked[1].Index)
	}
	if ranked[2] != b {
		t.Fatalf("expected near-duplicate ranked last, got %d", ranked[2].Index)
	}
}

func TestRankMMRScoresAreNormalizedRanks(t *testing.T) {
	o := DefaultOptions()
	centroid := []float32{1, 0}

	segments := make([]*domain.Segment, 0, 10)
	for i := 0; i < 10; i++ {
		segments = append(segments, embeddedSentence(i,
			fmt.Sprintf("Sentence number %d with enough length to be considered.", i),
			hashVector(fmt.Sprintf("seg-%d", i), 2)))
	}

	ranked := rankMMR(segments, centroid, domain.ContentUnknown, o)
	if len(ranked) != 10 {
		t.Fatalf("expected all 10 ranked, got %d", len(ranked))
	}
	prev := 1.0
	for i, seg := range ranked {
		if seg.SalienceScore < 0 || seg.SalienceScore >= 1 {
			t.Fatalf("rank %d score %f outside [0,1)", i, seg.SalienceScore)
		}
		if seg.SalienceScore >= prev {
			t.Fatalf("rank %d score %f did not decrease from %f", i, seg.SalienceScore, prev)
		}
		prev = seg.SalienceScore
	}
	if ranked[len(ranked)-1].SalienceScore != 0 {
		t.Fatalf("expected last rank score 0, got %f", ranked[len(ranked)-1].SalienceScore)
	}
}

func TestRankMMRSkipsUnembeddedSegments(t *testing.T) {
	o := DefaultOptions()
	centroid := []float32{1, 0}

	embedded := embeddedSentence(0, "Embedded sentence long enough to rank.", []float32{1, 0})
	bare := makeSentence(1, "Body", "Never embedded, never ranked.")

	ranked := rankMMR([]*domain.Segment{embedded, bare}, centroid, domain.ContentUnknown, o)
	if len(ranked) != 1 || ranked[0] != embedded {
		t.Fatalf("expected only the embedded segment ranked, got %d", len(ranked))
	}
}

func TestRankMMRNilCentroid(t *testing.T) {
	o := DefaultOptions()
	seg := embeddedSentence(0, "Embedded but nothing to compare against.", []float32{1, 0})

	if ranked := rankMMR([]*domain.Segment{seg}, nil, domain.ContentUnknown, o); ranked != nil {
		t.Fatalf("expected nil ranking without a centroid, got %d", len(ranked))
	}
}

func TestTargetCountClamps(t *testing.T) {
	o := DefaultOptions()

	if got := targetCount(100, o); got != o.MinSegments {
		t.Fatalf("expected floor %d for small document, got %d", o.MinSegments, got)
	}
	if got := targetCount(1000, o); got != 120 {
		t.Fatalf("expected 12%% of 1000, got %d", got)
	}
	if got := targetCount(100000, o); got != o.MaxSegments {
		t.Fatalf("expected ceiling %d for huge document, got %d", o.MaxSegments, got)
	}
}
