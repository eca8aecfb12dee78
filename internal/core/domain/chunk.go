package domain

// Chunk is one converted slice of a streaming document, produced by an
// upstream converter and consumed by the pipelined extractor.
type Chunk struct {
	DocumentID     string      `json:"document_id"`
	Index          int         `json:"chunk_index"`
	Text           string      `json:"text"`
	ContentType    ContentType `json:"content_type,omitempty"`
	ExpectedChunks int         `json:"expected_chunks,omitempty"`
	Final          bool        `json:"final"`
}
