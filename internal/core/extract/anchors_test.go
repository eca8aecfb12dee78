package extract

import (
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func embeddedSentence(index int, text string, vec []float32) *domain.Segment {
	seg := makeSentence(index, "Body", text)
	seg.Embedding = vec
	return seg
}

func TestSelectTopicAnchorsPicksFarthestPoint(t *testing.T) {
	sample := []*domain.Segment{
		embeddedSentence(0, "alpha theme sentence", []float32{1, 0, 0}),
		embeddedSentence(1, "alpha theme again", []float32{0.99, 0.14, 0}),
		embeddedSentence(2, "orthogonal theme", []float32{0, 1, 0}),
	}

	anchors := selectTopicAnchors(sample, 2)
	if len(anchors) != 2 {
		t.Fatalf("expected 2 anchors, got %d", len(anchors))
	}
	// Second anchor must be the orthogonal vector, not the near-duplicate.
	if cosine(anchors[1].vector, []float32{0, 1, 0}) < 0.99 {
		t.Fatalf("expected orthogonal segment as second anchor, got %v", anchors[1].vector)
	}
}

func TestSelectTopicAnchorsClampsToEmbeddedCount(t *testing.T) {
	sample := []*domain.Segment{
		embeddedSentence(0, "only embedded sentence", []float32{1, 0}),
		makeSentence(1, "Body", "no embedding here"),
	}

	anchors := selectTopicAnchors(sample, 5)
	if len(anchors) != 1 {
		t.Fatalf("expected anchors clamped to 1, got %d", len(anchors))
	}
}

func TestMaxAnchorAffinityUsesCosineWhenEmbedded(t *testing.T) {
	anchors := []topicAnchor{
		{vector: []float32{1, 0}, tokens: toTokenSet("alpha theme")},
		{vector: []float32{0, 1}, tokens: toTokenSet("beta theme")},
	}

	seg := embeddedSentence(0, "whatever", []float32{0, 1})
	if got := maxAnchorAffinity(seg, anchors); got < 0.99 {
		t.Fatalf("expected cosine affinity near 1, got %f", got)
	}
}

func TestMaxAnchorAffinityFallsBackToTokenOverlap(t *testing.T) {
	anchors := []topicAnchor{
		{vector: []float32{1, 0}, tokens: toTokenSet("raft leader election")},
	}

	seg := makeSentence(0, "Body", "the raft leader election timed out")
	got := maxAnchorAffinity(seg, anchors)
	if got != 1.0 {
		t.Fatalf("expected full token overlap, got %f", got)
	}

	unrelated := makeSentence(1, "Body", "completely different topic")
	if got := maxAnchorAffinity(unrelated, anchors); got != 0 {
		t.Fatalf("expected zero overlap, got %f", got)
	}
}
