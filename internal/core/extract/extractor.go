package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
)

// Extractor is the batch entry point: one synchronous pass over a fully
// parsed document. Very large documents route through the pre-filter or the
// hierarchical batch mode; small ones are embedded whole.
type Extractor struct {
	embedder ports.Embedder
	opts     Options
	logger   *slog.Logger
}

func New(embedder ports.Embedder, opts Options, logger *slog.Logger) (*Extractor, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}, nil
}

func (e *Extractor) Options() Options {
	return e.opts
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.ParsedDocument) (*domain.ExtractionResult, error) {
	start := time.Now()

	contentType := domain.ContentUnknown
	if doc != nil && doc.ContentType != "" {
		contentType = doc.ContentType
	}

	segments := flattenDocument(doc, 0, 0, 0)
	if len(segments) == 0 {
		// A document with zero segments degrades coverage, not correctness.
		e.logger.Warn("document_empty", "sections", sectionCountOf(doc))
		return &domain.ExtractionResult{
			Segments:      []*domain.Segment{},
			TopBySalience: []*domain.Segment{},
			ContentType:   contentType,
			Elapsed:       time.Since(start),
		}, nil
	}

	if err := e.embedder.Init(ctx); err != nil {
		return nil, fmt.Errorf("init embedding gateway: %w", err)
	}

	coverage := guaranteedCoverage(segments)

	var (
		candidates []*domain.Segment
		centroid   []float32
		embedded   int
		err        error
	)
	switch {
	case len(segments) > e.opts.HierarchicalThreshold:
		candidates, centroid, embedded, err = e.extractHierarchical(ctx, segments, coverage, contentType)
	case len(segments) > e.opts.MaxSegmentsToEmbed:
		var outcome *prefilterOutcome
		outcome, err = runPrefilter(ctx, e.embedder, segments, coverage, e.opts)
		if err == nil {
			candidates, centroid, embedded = outcome.candidates, outcome.centroid, outcome.embedded
		}
	default:
		candidates = e.embedCandidates(segments, coverage)
		embedded, err = embedMissing(ctx, e.embedder, candidates)
		if err == nil {
			centroid, err = embeddedCentroid(candidates)
		}
	}
	if err != nil {
		return nil, err
	}

	ranked := rankMMR(candidates, centroid, contentType, e.opts)
	top := headBySalience(ranked, len(segments), e.opts)

	e.logger.Info("extraction_done",
		"segments", len(segments),
		"candidates", len(candidates),
		"embedded", embedded,
		"top", len(top),
		"content_type", string(contentType),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	return &domain.ExtractionResult{
		Segments:      segments,
		TopBySalience: top,
		Centroid:      centroid,
		ContentType:   contentType,
		EmbeddedCount: embedded,
		Elapsed:       time.Since(start),
	}, nil
}

// embedCandidates filters out fragments below the minimum segment length;
// coverage members and headings are always kept.
func (e *Extractor) embedCandidates(segments []*domain.Segment, coverage coverageSet) []*domain.Segment {
	out := make([]*domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if coverage.has(seg.Index) || seg.Type == domain.SegmentHeading || len(seg.Text) >= e.opts.MinSegmentLength {
			out = append(out, seg)
		}
	}
	return out
}

// headBySalience sizes the fallback list: at least the configured floor, so
// callers always have some coverage even if later stages fail.
func headBySalience(ranked []*domain.Segment, totalSegments int, o Options) []*domain.Segment {
	want := targetCount(totalSegments, o)
	if want < o.FallbackBucketSize {
		want = o.FallbackBucketSize
	}
	if want > len(ranked) {
		want = len(ranked)
	}
	out := make([]*domain.Segment, want)
	copy(out, ranked[:want])
	return out
}

func sectionCountOf(doc *domain.ParsedDocument) int {
	if doc == nil {
		return 0
	}
	return len(doc.Sections)
}
