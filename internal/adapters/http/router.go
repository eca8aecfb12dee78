package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/doc-salience/internal/config"
	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
	"github.com/kirillkom/doc-salience/internal/observability/metrics"
)

type Router struct {
	cfg       config.Config
	extractor ports.DocumentExtractor
	parser    ports.SectionParser
	queue     ports.ChunkQueue
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	extractor ports.DocumentExtractor,
	parser ports.SectionParser,
	queue ports.ChunkQueue,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		extractor: extractor,
		parser:    parser,
		queue:     queue,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/extract", rt.extract)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/chunks", rt.publishChunk)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	Text        string `json:"text"`
	ContentType string `json:"content_type"`
}

type extractResponse struct {
	ContentType   string            `json:"content_type"`
	SegmentCount  int               `json:"segment_count"`
	EmbeddedCount int               `json:"embedded_count"`
	ElapsedMs     float64           `json:"elapsed_ms"`
	TopBySalience []*domain.Segment `json:"top_by_salience"`
}

// extract runs a one-shot extraction: parse the submitted text, rank it,
// return the salient head. Large inputs take the pre-filter and hierarchical
// paths inside the engine transparently.
func (rt *Router) extract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	doc, err := rt.parser.Parse(req.Text, true)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unparseable document: " + err.Error()})
		return
	}
	doc.ContentType = normalizeContentType(req.ContentType)

	start := time.Now()
	result, err := rt.extractor.Extract(r.Context(), doc)
	if rt.metrics != nil {
		segments, embedded := 0, 0
		if result != nil {
			segments, embedded = len(result.Segments), result.EmbeddedCount
		}
		rt.metrics.RecordExtraction("api", segments, embedded, time.Since(start), err)
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		ContentType:   string(result.ContentType),
		SegmentCount:  len(result.Segments),
		EmbeddedCount: result.EmbeddedCount,
		ElapsedMs:     float64(result.Elapsed.Microseconds()) / 1000.0,
		TopBySalience: result.TopBySalience,
	})
}

type retrieveRequest struct {
	Text        string `json:"text"`
	Query       string `json:"query"`
	ContentType string `json:"content_type"`
}

// retrieve is the query-aware variant of extract: same extraction pass, but
// the salient head comes back ordered by similarity to the caller's query,
// with query_similarity set on its members.
func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	doc, err := rt.parser.Parse(req.Text, true)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unparseable document: " + err.Error()})
		return
	}
	doc.ContentType = normalizeContentType(req.ContentType)

	start := time.Now()
	result, err := rt.extractor.Retrieve(r.Context(), doc, req.Query)
	if rt.metrics != nil {
		segments, embedded := 0, 0
		if result != nil {
			segments, embedded = len(result.Segments), result.EmbeddedCount
		}
		rt.metrics.RecordExtraction("api", segments, embedded, time.Since(start), err)
	}
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		ContentType:   string(result.ContentType),
		SegmentCount:  len(result.Segments),
		EmbeddedCount: result.EmbeddedCount,
		ElapsedMs:     float64(result.Elapsed.Microseconds()) / 1000.0,
		TopBySalience: result.TopBySalience,
	})
}

// publishChunk feeds the pipelined mode: the chunk goes onto the queue and a
// worker session picks it up.
func (rt *Router) publishChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.queue == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "chunk queue is not configured"})
		return
	}

	var chunk domain.Chunk
	if err := json.NewDecoder(r.Body).Decode(&chunk); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(chunk.DocumentID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_id is required"})
		return
	}
	if chunk.Index < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chunk index is negative"})
		return
	}

	if err := rt.queue.PublishChunk(r.Context(), chunk); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": chunk.DocumentID,
		"index":       chunk.Index,
		"final":       chunk.Final,
	})
}

func normalizeContentType(raw string) domain.ContentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.ContentNarrative):
		return domain.ContentNarrative
	case string(domain.ContentExpository):
		return domain.ContentExpository
	default:
		return domain.ContentUnknown
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
