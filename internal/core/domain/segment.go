package domain

import (
	"hash/fnv"
	"time"
)

type SegmentType string

const (
	SegmentHeading   SegmentType = "heading"
	SegmentSentence  SegmentType = "sentence"
	SegmentListItem  SegmentType = "list_item"
	SegmentCodeBlock SegmentType = "code_block"
	SegmentQuote     SegmentType = "quote"
)

type ContentType string

const (
	ContentUnknown    ContentType = "unknown"
	ContentNarrative  ContentType = "narrative"
	ContentExpository ContentType = "expository"
)

// Segment is one extracted unit of document content. Segments are created once
// during parsing and owned by a single extraction session; Embedding is written
// only by the embedding phase (or the background task in streaming mode) and
// SalienceScore only by ranking.
type Segment struct {
	Index        int         `json:"index"`
	ContentHash  uint64      `json:"content_hash"`
	Type         SegmentType `json:"type"`
	Text         string      `json:"text"`
	SectionTitle string      `json:"section_title,omitempty"`
	HeadingPath  []string    `json:"heading_path,omitempty"`
	HeadingLevel int         `json:"heading_level,omitempty"`
	ChunkIndex   int         `json:"chunk_index"`
	StartChar    int         `json:"start_char"`
	EndChar      int         `json:"end_char"`
	Language     string      `json:"language,omitempty"`

	PositionWeight  float64   `json:"position_weight"`
	SalienceScore   float64   `json:"salience_score"`
	Embedding       []float32 `json:"-"`
	QuerySimilarity float64   `json:"query_similarity,omitempty"`
}

// HashText is the stable content hash used for dedup and deterministic
// sampling. FNV-1a is intentional: it is cheap, non-cryptographic and stable
// across processes, unlike map iteration order or runtime hash seeds.
func HashText(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// WeightedSentence is a sentence plus the structural position-weight hint
// assigned by the parser (document title ~2.0, body sentence 1.0).
type WeightedSentence struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

// ParsedSection is the parser-boundary shape: one document section with its
// heading breadcrumb and typed content lists.
type ParsedSection struct {
	Title      string             `json:"title"`
	Level      int                `json:"level"`
	Path       []string           `json:"path,omitempty"`
	Sentences  []WeightedSentence `json:"sentences,omitempty"`
	ListItems  []string           `json:"list_items,omitempty"`
	CodeBlocks []CodeBlock        `json:"code_blocks,omitempty"`
	Quotes     []string           `json:"quotes,omitempty"`
}

type ParsedDocument struct {
	Title       string          `json:"title"`
	ContentType ContentType     `json:"content_type"`
	Sections    []ParsedSection `json:"sections"`
}

// ExtractionResult is the engine output: the segments actually considered, the
// ranked head, and the centroid over whatever was embedded. Immutable once
// returned.
type ExtractionResult struct {
	Segments      []*Segment    `json:"segments"`
	TopBySalience []*Segment    `json:"top_by_salience"`
	Centroid      []float32     `json:"-"`
	ContentType   ContentType   `json:"content_type"`
	EmbeddedCount int           `json:"embedded_count"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}
