package extract

import (
	"context"
	"strings"
	"testing"
)

func TestRetrieveReordersHeadByQuerySimilarity(t *testing.T) {
	embedder := newFakeEmbedder(8)
	// The fake embeds queries the same way as segments, so the query's
	// textual twin gets similarity 1.0 and must lead the re-ranked head.
	target := "Sentence 3 of section 2 carries enough unique words to matter."

	o := DefaultOptions()
	// Head wide enough to hold every candidate, so the twin cannot be cut
	// by salience before the query re-rank sees it.
	o.MinSegments = 80

	e, err := New(embedder, o, nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	result, err := e.Retrieve(context.Background(), makeDocument(5, 12), target)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.TopBySalience) == 0 {
		t.Fatal("expected a non-empty head")
	}

	head := result.TopBySalience[0]
	if head.Text != target {
		t.Fatalf("expected query twin first, got %q (similarity %f)", head.Text, head.QuerySimilarity)
	}
	if head.QuerySimilarity < 0.999 {
		t.Fatalf("expected near-perfect similarity for the query twin, got %f", head.QuerySimilarity)
	}
	for i := 1; i < len(result.TopBySalience); i++ {
		prev, cur := result.TopBySalience[i-1], result.TopBySalience[i]
		if cur.QuerySimilarity > prev.QuerySimilarity {
			t.Fatalf("head not sorted by query similarity at position %d", i)
		}
	}
}

func TestRetrieveLeavesNonHeadSegmentsUntouched(t *testing.T) {
	e, err := New(newFakeEmbedder(8), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	result, err := e.Retrieve(context.Background(), makeDocument(5, 12), "checkpoint interval tuning")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	inHead := make(map[int]struct{}, len(result.TopBySalience))
	for _, seg := range result.TopBySalience {
		inHead[seg.Index] = struct{}{}
	}
	for _, seg := range result.Segments {
		if _, ok := inHead[seg.Index]; ok {
			continue
		}
		if seg.QuerySimilarity != 0 {
			t.Fatalf("segment %d outside the head got a query similarity", seg.Index)
		}
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	e, err := New(newFakeEmbedder(8), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	if _, err := e.Retrieve(context.Background(), makeDocument(2, 4), "   "); err == nil {
		t.Fatal("expected error for blank query")
	} else if !strings.Contains(err.Error(), "query is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}
