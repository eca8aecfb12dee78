package extract

import (
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func TestBM25ScoresMatchingSegmentHighest(t *testing.T) {
	segments := []*domain.Segment{
		makeSentence(0, "Body", "the weather today is calm and bright"),
		makeSentence(1, "Body", "database replication lag grows under load"),
		makeSentence(2, "Body", "the weather report mentions replication once"),
	}

	idx := newBM25Index(segments)
	scores := idx.score([]string{"replication", "lag"})

	if scores[1] <= scores[0] || scores[1] <= scores[2] {
		t.Fatalf("expected segment 1 to score highest, got %v", scores)
	}
	if scores[0] != 0 {
		t.Fatalf("expected zero score for non-matching segment, got %f", scores[0])
	}
}

func TestBM25DuplicateQueryTermsCountOnce(t *testing.T) {
	segments := []*domain.Segment{
		makeSentence(0, "Body", "replication keeps replicas in sync"),
		makeSentence(1, "Body", "nothing relevant in this one"),
	}

	idx := newBM25Index(segments)
	once := idx.score([]string{"replication"})
	thrice := idx.score([]string{"replication", "replication", "replication"})

	if once[0] != thrice[0] {
		t.Fatalf("expected duplicate terms to count once: %f vs %f", once[0], thrice[0])
	}
}

func TestBM25LengthNormalizationPrefersConciseMatch(t *testing.T) {
	segments := []*domain.Segment{
		makeSentence(0, "Body", "failover procedure"),
		makeSentence(1, "Body", "failover procedure described at length with many extra surrounding words that dilute the term frequency weight"),
	}

	idx := newBM25Index(segments)
	scores := idx.score([]string{"failover"})
	if scores[0] <= scores[1] {
		t.Fatalf("expected shorter match to score higher, got %v", scores)
	}
}

func TestBM25EmptyIndex(t *testing.T) {
	idx := newBM25Index(nil)
	scores := idx.score([]string{"anything"})
	if len(scores) != 0 {
		t.Fatalf("expected no scores for empty index, got %d", len(scores))
	}
}
