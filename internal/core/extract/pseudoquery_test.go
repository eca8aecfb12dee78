package extract

import (
	"fmt"
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func TestBuildPseudoQueryIncludesHeadingTokens(t *testing.T) {
	all := []*domain.Segment{
		makeHeading(0, "Replication Internals", 2),
		makeSentence(1, "Replication Internals", "Replicas apply the log in commit order."),
		makeSentence(2, "Replication Internals", "Replicas acknowledge the log after fsync."),
	}

	query := buildPseudoQuery(all, all)
	if !containsTerm(query, "replication") || !containsTerm(query, "internals") {
		t.Fatalf("expected heading tokens in query, got %v", query)
	}
}

func TestBuildPseudoQueryDropsUbiquitousAndRareTerms(t *testing.T) {
	all := make([]*domain.Segment, 0, 20)
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("filler item number %d everywhere", i)
		if i < 8 {
			text += " checkpoint interval tuning"
		}
		if i == 0 {
			text += " singleton"
		}
		all = append(all, makeSentence(i, "Body", text))
	}

	query := buildPseudoQuery(all, all)
	// "everywhere" is in all 20 segments (df > 50%), "singleton" in one (df < 2).
	if containsTerm(query, "everywhere") {
		t.Fatalf("expected ubiquitous term dropped, got %v", query)
	}
	if containsTerm(query, "singleton") {
		t.Fatalf("expected rare term dropped, got %v", query)
	}
	if !containsTerm(query, "checkpoint") {
		t.Fatalf("expected discriminative term kept, got %v", query)
	}
}

func TestBuildPseudoQueryCapsTermCount(t *testing.T) {
	all := make([]*domain.Segment, 0, 100)
	for i := 0; i < 100; i++ {
		all = append(all, makeSentence(i, "Body",
			fmt.Sprintf("topic%d alpha%d beta%d topic%d gamma%d", i%40, i%41, i%42, i%40, i%43)))
	}

	query := buildPseudoQuery(all, all)
	if len(query) > pseudoQueryTerms {
		t.Fatalf("expected at most %d terms without headings, got %d", pseudoQueryTerms, len(query))
	}
}

func containsTerm(terms []string, want string) bool {
	for _, term := range terms {
		if term == want {
			return true
		}
	}
	return false
}
