package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func bigSegmentSet(sections, perSection int) []*domain.Segment {
	segments := make([]*domain.Segment, 0, sections*(perSection+1))
	index := 0
	for s := 0; s < sections; s++ {
		title := fmt.Sprintf("Section %d", s+1)
		h := makeHeading(index, title, 2)
		segments = append(segments, h)
		index++
		for i := 0; i < perSection; i++ {
			segments = append(segments, makeSentence(index, title,
				fmt.Sprintf("Observation %d in %s concerns throughput and latency behavior.", i+1, title)))
			index++
		}
	}
	return segments
}

func TestRunPrefilterKeepsCoverageAndOrder(t *testing.T) {
	o := DefaultOptions()
	o.MaxSegmentsToEmbed = 300
	o.PreFilterSampleSize = 60

	segments := bigSegmentSet(20, 100)
	coverage := guaranteedCoverage(segments)
	embedder := newFakeEmbedder(8)

	outcome, err := runPrefilter(context.Background(), embedder, segments, coverage, o)
	if err != nil {
		t.Fatalf("prefilter: %v", err)
	}

	inCandidates := make(map[int]struct{}, len(outcome.candidates))
	for i, seg := range outcome.candidates {
		inCandidates[seg.Index] = struct{}{}
		if i > 0 && outcome.candidates[i-1].Index >= seg.Index {
			t.Fatalf("candidates not in document order at position %d", i)
		}
	}
	for index := range coverage {
		if _, ok := inCandidates[index]; !ok {
			t.Fatalf("coverage segment %d missing from candidates", index)
		}
	}
	if len(outcome.centroid) != 8 {
		t.Fatalf("expected 8-dim centroid, got %d", len(outcome.centroid))
	}
}

func TestRunPrefilterEmbedsFarFewerThanTotal(t *testing.T) {
	o := DefaultOptions()
	o.MaxSegmentsToEmbed = 300
	o.PreFilterSampleSize = 60

	segments := bigSegmentSet(20, 100)
	embedder := newFakeEmbedder(8)

	outcome, err := runPrefilter(context.Background(), embedder, segments, guaranteedCoverage(segments), o)
	if err != nil {
		t.Fatalf("prefilter: %v", err)
	}

	// Lexical candidates are bounded at 2x budget; with sample and coverage
	// folded in, the embedded set must stay a small fraction of 2020 segments.
	if outcome.embedded > 3*o.MaxSegmentsToEmbed {
		t.Fatalf("embedded %d exceeds prefilter bound", outcome.embedded)
	}
	if outcome.embedded >= len(segments) {
		t.Fatalf("prefilter embedded everything: %d of %d", outcome.embedded, len(segments))
	}
	_, gatewayTotal := embedder.stats()
	if gatewayTotal != outcome.embedded {
		t.Fatalf("embedded count %d disagrees with gateway traffic %d", outcome.embedded, gatewayTotal)
	}
}

func TestStratifiedSampleCoversEverySection(t *testing.T) {
	segments := bigSegmentSet(10, 30)

	sample := stratifiedSample(segments, 80)
	if len(sample) > 80 {
		t.Fatalf("expected sample capped at 80, got %d", len(sample))
	}

	seen := make(map[string]struct{}, 10)
	for _, seg := range sample {
		if seg.Type == domain.SegmentSentence {
			seen[seg.SectionTitle] = struct{}{}
		}
	}
	if len(seen) != 10 {
		t.Fatalf("expected sentences from all 10 sections, got %d", len(seen))
	}
}

func TestStratifiedSampleSmallInputPassesThrough(t *testing.T) {
	segments := bigSegmentSet(2, 5)
	sample := stratifiedSample(segments, 100)
	if len(sample) != len(segments) {
		t.Fatalf("expected passthrough of %d segments, got %d", len(segments), len(sample))
	}
}
