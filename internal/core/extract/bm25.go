package extract

import (
	"math"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type bm25Posting struct {
	doc int
	tf  int
}

// bm25Index is an in-memory BM25 scorer over one document's segments.
// Documents in the index are segments; ids are positions in the input slice.
type bm25Index struct {
	postings map[string][]bm25Posting
	docLen   []int
	avgLen   float64
	total    int
}

func newBM25Index(segments []*domain.Segment) *bm25Index {
	idx := &bm25Index{
		postings: make(map[string][]bm25Posting, 1024),
		docLen:   make([]int, len(segments)),
		total:    len(segments),
	}

	lenSum := 0
	for i, seg := range segments {
		tokens := tokenizeAlphaNum(seg.Text)
		idx.docLen[i] = len(tokens)
		lenSum += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for term, count := range tf {
			idx.postings[term] = append(idx.postings[term], bm25Posting{doc: i, tf: count})
		}
	}
	if idx.total > 0 {
		idx.avgLen = float64(lenSum) / float64(idx.total)
	}
	return idx
}

func (idx *bm25Index) idf(term string) float64 {
	df := len(idx.postings[term])
	if df == 0 {
		return 0
	}
	n := float64(idx.total)
	return math.Log(1.0 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// score accumulates BM25 over the query terms and returns one score per
// indexed segment. Duplicate query terms count once.
func (idx *bm25Index) score(query []string) []float64 {
	scores := make([]float64, idx.total)
	if idx.total == 0 || idx.avgLen == 0 {
		return scores
	}

	seen := make(map[string]struct{}, len(query))
	for _, term := range query {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		idf := idx.idf(term)
		if idf == 0 {
			continue
		}
		for _, p := range idx.postings[term] {
			tf := float64(p.tf)
			lenNorm := 1.0 - bm25B + bm25B*float64(idx.docLen[p.doc])/idx.avgLen
			scores[p.doc] += idf * (tf * (bm25K1 + 1.0)) / (tf + bm25K1*lenNorm)
		}
	}
	return scores
}
