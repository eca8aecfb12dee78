package extract

import (
	"math"
	"sort"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

const pseudoQueryTerms = 30

// buildPseudoQuery derives a lexical query representing the document's
// themes: all distinct section titles plus the sample's top TF-IDF terms.
// Document frequency comes from the full segment set so sample-local quirks
// do not dominate; terms in almost every segment carry no signal and are
// dropped alongside stopwords.
func buildPseudoQuery(sample, all []*domain.Segment) []string {
	df := make(map[string]int, 1024)
	for _, seg := range all {
		seen := make(map[string]struct{}, 16)
		for _, token := range tokenizeAlphaNum(seg.Text) {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}

	tf := make(map[string]int, 512)
	for _, seg := range sample {
		for _, token := range tokenizeAlphaNum(seg.Text) {
			if isStopword(token) || len(token) < 3 {
				continue
			}
			tf[token]++
		}
	}

	n := float64(len(all))
	type scoredTerm struct {
		term  string
		score float64
	}
	terms := make([]scoredTerm, 0, len(tf))
	for term, count := range tf {
		freq := df[term]
		// Too rare to matter, or so common it is effectively a stopword.
		if freq < 2 || float64(freq) > 0.5*n {
			continue
		}
		idf := math.Log((1.0+n)/(1.0+float64(freq))) + 1.0
		terms = append(terms, scoredTerm{term: term, score: float64(count) * idf})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > pseudoQueryTerms {
		terms = terms[:pseudoQueryTerms]
	}

	query := make([]string, 0, pseudoQueryTerms+16)
	titleSeen := make(map[string]struct{}, 16)
	for _, seg := range all {
		if seg.Type != domain.SegmentHeading {
			continue
		}
		if _, dup := titleSeen[seg.Text]; dup {
			continue
		}
		titleSeen[seg.Text] = struct{}{}
		for _, token := range tokenizeAlphaNum(seg.Text) {
			if !isStopword(token) {
				query = append(query, token)
			}
		}
	}
	for _, t := range terms {
		query = append(query, t.term)
	}
	return query
}
