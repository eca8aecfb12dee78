package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// Retrieve is query-aware retrieval: a normal extraction pass, then the
// salient head is re-ordered by similarity to a caller query. This is the
// only place QuerySimilarity is written; extraction output itself stays
// query-independent.
func (e *Extractor) Retrieve(ctx context.Context, doc *domain.ParsedDocument, query string) (*domain.ExtractionResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is empty"))
	}

	result, err := e.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(result.TopBySalience) == 0 {
		return result, nil
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	for _, seg := range result.TopBySalience {
		if len(seg.Embedding) > 0 {
			seg.QuerySimilarity = cosine(queryVec, seg.Embedding)
		}
	}
	// Unembedded head members have zero similarity and sink; salience
	// order breaks ties so the re-rank stays deterministic.
	sort.SliceStable(result.TopBySalience, func(i, j int) bool {
		a, b := result.TopBySalience[i], result.TopBySalience[j]
		if a.QuerySimilarity != b.QuerySimilarity {
			return a.QuerySimilarity > b.QuerySimilarity
		}
		return a.SalienceScore > b.SalienceScore
	})
	return result, nil
}
