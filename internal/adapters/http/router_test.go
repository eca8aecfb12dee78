package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/doc-salience/internal/config"
	"github.com/kirillkom/doc-salience/internal/core/domain"
)

type extractorFake struct {
	err    error
	result *domain.ExtractionResult
}

func (f extractorFake) Extract(context.Context, *domain.ParsedDocument) (*domain.ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.ExtractionResult{
		Segments:      []*domain.Segment{{Index: 0, Type: domain.SegmentSentence, Text: "hello"}},
		TopBySalience: []*domain.Segment{{Index: 0, Type: domain.SegmentSentence, Text: "hello"}},
		ContentType:   domain.ContentExpository,
		EmbeddedCount: 1,
	}, nil
}

func (f extractorFake) Retrieve(ctx context.Context, doc *domain.ParsedDocument, query string) (*domain.ExtractionResult, error) {
	result, err := f.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, seg := range result.TopBySalience {
		seg.QuerySimilarity = 0.9
	}
	return result, nil
}

type parserFake struct {
	err error
}

func (f parserFake) Parse(text string, sanitize bool) (*domain.ParsedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ParsedDocument{
		Sections: []domain.ParsedSection{{
			Title:     "Body",
			Sentences: []domain.WeightedSentence{{Text: text, Weight: 1.0}},
		}},
	}, nil
}

type queueFake struct {
	err       error
	published []domain.Chunk
}

func (f *queueFake) PublishChunk(_ context.Context, chunk domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, chunk)
	return nil
}

func (f *queueFake) SubscribeChunks(context.Context, func(context.Context, domain.Chunk) error) error {
	return nil
}

func testConfig() config.Config {
	return config.Config{RateLimitRPS: 100, RateLimitBurst: 100}
}

func TestExtractReturnsRankedHead(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]string{"text": "Some document text.", "content_type": "expository"})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp extractResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SegmentCount != 1 || len(resp.TopBySalience) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExtractRejectsEmptyText(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]string{"text": "   "})
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestExtractMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "extract", errors.New("bad")), http.StatusBadRequest},
		{"dimension mismatch", domain.WrapError(domain.ErrDimensionMismatch, "extract", errors.New("ragged")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "extract", errors.New("overloaded")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(testConfig(), extractorFake{err: tc.err}, parserFake{}, nil, nil).Handler()

			payload, _ := json.Marshal(map[string]string{"text": "content"})
			req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(payload))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestRetrieveReturnsQueryScoredHead(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]string{"text": "Some document text.", "query": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp extractResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.TopBySalience) != 1 || resp.TopBySalience[0].QuerySimilarity != 0.9 {
		t.Fatalf("expected query similarity on head, got %+v", resp.TopBySalience)
	}
}

func TestRetrieveRequiresQuery(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]string{"text": "Some document text."})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestPublishChunkAcceptsAndForwards(t *testing.T) {
	queue := &queueFake{}
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, queue, nil).Handler()

	payload, _ := json.Marshal(domain.Chunk{DocumentID: "doc-1", Index: 2, Text: "chunk body", Final: true})
	req := httptest.NewRequest(http.MethodPost, "/v1/chunks", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(queue.published) != 1 || queue.published[0].DocumentID != "doc-1" || !queue.published[0].Final {
		t.Fatalf("unexpected published chunks: %+v", queue.published)
	}
}

func TestPublishChunkRequiresDocumentID(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, &queueFake{}, nil).Handler()

	payload, _ := json.Marshal(domain.Chunk{Index: 0, Text: "chunk body"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chunks", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthzBypassesRateLimit(t *testing.T) {
	cfg := config.Config{RateLimitRPS: 1, RateLimitBurst: 1}
	handler := NewRouter(cfg, extractorFake{}, parserFake{}, nil, nil).Handler()

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("healthz attempt %d expected 200, got %d", i, res.Code)
		}
	}
}

func TestRateLimitReturns429(t *testing.T) {
	cfg := config.Config{RateLimitRPS: 1, RateLimitBurst: 1}
	handler := NewRouter(cfg, extractorFake{}, parserFake{}, nil, nil).Handler()

	payload, _ := json.Marshal(map[string]string{"text": "content"})

	req1 := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(payload))
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(payload))
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	handler := NewRouter(testConfig(), extractorFake{}, parserFake{}, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
