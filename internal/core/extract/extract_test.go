package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// fakeEmbedder returns deterministic hash-derived vectors so tests are
// reproducible without a model server. Counters track gateway traffic.
type fakeEmbedder struct {
	mu       sync.Mutex
	dim      int
	calls    int
	embedded int
	fail     error
	vectors  func(text string) []float32
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (f *fakeEmbedder) Init(ctx context.Context) error { return nil }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.calls++
	f.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.vectors != nil {
			out[i] = f.vectors(text)
			continue
		}
		out[i] = hashVector(text, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) stats() (calls, embedded int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.embedded
}

func hashVector(text string, dim int) []float32 {
	h := domain.HashText(text)
	out := make([]float32, dim)
	for i := range out {
		h = stableSampleHash(h, uint64(i)+1)
		out[i] = float32(h%1000)/1000.0 + 0.001
	}
	return out
}

func makeSentence(index int, section, text string) *domain.Segment {
	return &domain.Segment{
		Index:          index,
		ContentHash:    domain.HashText(text),
		Type:           domain.SegmentSentence,
		Text:           text,
		SectionTitle:   section,
		PositionWeight: 1.0,
	}
}

func makeHeading(index int, title string, level int) *domain.Segment {
	return &domain.Segment{
		Index:          index,
		ContentHash:    domain.HashText(title),
		Type:           domain.SegmentHeading,
		Text:           title,
		SectionTitle:   title,
		HeadingLevel:   level,
		PositionWeight: 1.2,
	}
}

// makeDocument builds sections sentences-per-section sentences each, with
// distinct sentence texts long enough to clear the minimum segment length.
func makeDocument(sections, sentencesPer int) *domain.ParsedDocument {
	doc := &domain.ParsedDocument{
		Title:       "Test Document",
		ContentType: domain.ContentExpository,
	}
	for s := 0; s < sections; s++ {
		section := domain.ParsedSection{
			Title: fmt.Sprintf("Section %d", s+1),
			Level: 2,
		}
		for i := 0; i < sentencesPer; i++ {
			section.Sentences = append(section.Sentences, domain.WeightedSentence{
				Text:   fmt.Sprintf("Sentence %d of section %d carries enough unique words to matter.", i+1, s+1),
				Weight: 1.0,
			})
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc
}
