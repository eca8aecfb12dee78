package extract

import (
	"strings"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

const (
	defaultSentenceWeight = 1.0
	listItemWeight        = 1.05
	headingWeight         = 1.2
	documentTitleWeight   = 2.0
)

// flattenDocument turns parser output into the engine's segment sequence,
// assigning monotonically increasing indices, content hashes and char spans.
// startIndex/startChar let streaming mode keep global counters monotonic
// across chunks.
func flattenDocument(doc *domain.ParsedDocument, startIndex, chunkIndex, startChar int) []*domain.Segment {
	if doc == nil {
		return nil
	}

	index := startIndex
	cursor := startChar
	out := make([]*domain.Segment, 0, 64)

	emit := func(segType domain.SegmentType, text string, section domain.ParsedSection, weight float64, language string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if weight <= 0 {
			weight = defaultSentenceWeight
		}
		seg := &domain.Segment{
			Index:          index,
			ContentHash:    domain.HashText(text),
			Type:           segType,
			Text:           text,
			SectionTitle:   section.Title,
			HeadingPath:    section.Path,
			HeadingLevel:   section.Level,
			ChunkIndex:     chunkIndex,
			StartChar:      cursor,
			EndChar:        cursor + len(text),
			Language:       language,
			PositionWeight: weight,
		}
		out = append(out, seg)
		index++
		cursor += len(text) + 1
	}

	for _, section := range doc.Sections {
		headingW := headingWeight
		if doc.Title != "" && section.Title == doc.Title && section.Level <= 1 {
			headingW = documentTitleWeight
		}
		emit(domain.SegmentHeading, section.Title, section, headingW, "")

		for _, sentence := range section.Sentences {
			emit(domain.SegmentSentence, sentence.Text, section, sentence.Weight, "")
		}
		for _, item := range section.ListItems {
			emit(domain.SegmentListItem, item, section, listItemWeight, "")
		}
		for _, block := range section.CodeBlocks {
			emit(domain.SegmentCodeBlock, block.Text, section, defaultSentenceWeight, block.Language)
		}
		for _, quote := range section.Quotes {
			emit(domain.SegmentQuote, quote, section, defaultSentenceWeight, "")
		}
	}

	return out
}
