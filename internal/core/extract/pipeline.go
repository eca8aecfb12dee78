package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
)

// Pipeline opens pipelined extraction sessions: chunks arrive incrementally,
// a single background task embeds a budget-limited subset while more chunks
// keep arriving, and ranking happens exactly once at finalization.
type Pipeline struct {
	embedder ports.Embedder
	parser   ports.SectionParser
	opts     Options
	logger   *slog.Logger
}

var (
	_ ports.StreamExtractor = (*Pipeline)(nil)
	_ ports.StreamSession   = (*Session)(nil)
)

func NewPipeline(embedder ports.Embedder, parser ports.SectionParser, opts Options, logger *slog.Logger) (*Pipeline, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		parser:   parser,
		opts:     opts,
		logger:   logger,
	}, nil
}

const (
	stateIdle int32 = iota
	stateReceiving
	stateFinalizing
	stateDone
)

// Session is one document's pipelined extraction. Two actors touch it: the
// caller appends chunks and makes budget decisions, the background task owns
// the work channel's receive side and is the only writer of Embedding
// fields. A dedicated mutex guards only the start-once transition.
type Session struct {
	id          string
	contentType domain.ContentType
	startedAt   time.Time

	embedder ports.Embedder
	parser   ports.SectionParser
	opts     Options
	logger   *slog.Logger

	state atomic.Int32

	startMu sync.Mutex
	started bool
	bgCtx   context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	segs        segmentList
	work        chan *domain.Segment
	closeIntake sync.Once
	budget      *budgetController
	profile     *lexicalProfile

	chunks    atomic.Int64
	skipped   atomic.Int64
	enqueued  atomic.Int64
	embedded  atomic.Int64
	exhausted atomic.Bool
	vectorDim atomic.Int32
}

func (p *Pipeline) NewSession(docID string, contentType domain.ContentType, expectedChunks int) (ports.StreamSession, error) {
	if docID == "" {
		docID = uuid.NewString()
	}
	if contentType == "" {
		contentType = domain.ContentUnknown
	}
	profile := newLexicalProfile()
	s := &Session{
		id:          docID,
		contentType: contentType,
		startedAt:   time.Now(),
		embedder:    p.embedder,
		parser:      p.parser,
		opts:        p.opts,
		logger:      p.logger.With("doc_id", docID),
		work:        make(chan *domain.Segment, p.opts.Pipeline.GlobalEmbedBudget+p.opts.Pipeline.EmbedBatchSize),
		budget:      newBudgetController(p.opts.Pipeline, expectedChunks, profile),
		profile:     profile,
	}
	return s, nil
}

// segmentList is the internally synchronized accumulation structure: the
// caller appends, finalization snapshots. Indices and char spans are
// rebased under the same lock so they stay globally monotonic.
type segmentList struct {
	mu    sync.Mutex
	items []*domain.Segment
	chars int
}

func (l *segmentList) appendRebase(segs []*domain.Segment) {
	l.mu.Lock()
	for _, seg := range segs {
		span := seg.EndChar - seg.StartChar
		seg.Index = len(l.items)
		seg.StartChar = l.chars
		seg.EndChar = l.chars + span
		l.chars += span + 1
		l.items = append(l.items, seg)
	}
	l.mu.Unlock()
}

func (l *segmentList) snapshot() []*domain.Segment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Segment, len(l.items))
	copy(out, l.items)
	return out
}

func (l *segmentList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Append parses one chunk and decides its embedding budget. It never blocks
// on embedding; a chunk that fails to parse is retried once with
// sanitization disabled and then skipped without error.
func (s *Session) Append(ctx context.Context, chunk domain.Chunk) error {
	switch s.state.Load() {
	case stateFinalizing, stateDone:
		return domain.WrapError(domain.ErrInvalidInput, "append chunk", errors.New("session already finalized"))
	}
	s.state.CompareAndSwap(stateIdle, stateReceiving)

	if chunk.ExpectedChunks > 0 {
		s.budget.noteExpectedChunks(chunk.ExpectedChunks)
	}
	s.chunks.Add(1)

	segs := s.parseChunk(chunk)
	if len(segs) == 0 {
		s.skipped.Add(1)
		s.logger.Warn("chunk_skipped", "chunk_index", chunk.Index, "text_len", len(chunk.Text))
		return nil
	}
	s.segs.appendRebase(segs)
	s.ensureBackground()

	guaranteed, remainder := splitChunkGuaranteed(segs)
	eligible := remainder[:0:0]
	for _, seg := range remainder {
		if len(seg.Text) >= s.opts.MinSegmentLength {
			eligible = append(eligible, seg)
		}
	}
	picks := s.budget.decide(chunk.Index, eligible)

	s.enqueue(guaranteed)
	s.enqueue(picks)
	return nil
}

func (s *Session) parseChunk(chunk domain.Chunk) []*domain.Segment {
	doc, err := s.parser.Parse(chunk.Text, true)
	segs := flattenDocument(doc, 0, chunk.Index, 0)
	if err == nil && len(segs) > 0 {
		return segs
	}
	// One retry with the raw text; aggressive sanitization sometimes strips
	// a garbled chunk to nothing.
	doc, err = s.parser.Parse(chunk.Text, false)
	if err != nil {
		return nil
	}
	return flattenDocument(doc, 0, chunk.Index, 0)
}

// splitChunkGuaranteed separates the per-chunk always-embed subset: every
// heading plus the first and last two sentences of the chunk.
func splitChunkGuaranteed(segs []*domain.Segment) (guaranteed, remainder []*domain.Segment) {
	sentenceIdx := make([]int, 0, len(segs))
	for i, seg := range segs {
		if seg.Type == domain.SegmentSentence {
			sentenceIdx = append(sentenceIdx, i)
		}
	}
	keep := make(map[int]struct{}, 8)
	take := func(pos int) {
		if pos >= 0 && pos < len(sentenceIdx) {
			keep[sentenceIdx[pos]] = struct{}{}
		}
	}
	take(0)
	take(1)
	take(len(sentenceIdx) - 2)
	take(len(sentenceIdx) - 1)

	for i, seg := range segs {
		_, kept := keep[i]
		if seg.Type == domain.SegmentHeading || kept {
			guaranteed = append(guaranteed, seg)
		} else {
			remainder = append(remainder, seg)
		}
	}
	return guaranteed, remainder
}

func (s *Session) enqueue(segs []*domain.Segment) {
	if s.exhausted.Load() {
		return
	}
	for _, seg := range segs {
		select {
		case s.work <- seg:
			s.enqueued.Add(1)
		default:
			// Capacity is budget-sized; overflow means the consumer stopped
			// accepting, so dropping is the correct degradation.
			s.logger.Warn("embed_queue_overflow", "segment_index", seg.Index)
			return
		}
	}
}

func (s *Session) ensureBackground() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.bgCtx, s.cancel = context.WithCancel(context.Background())
	var gctx context.Context
	s.group, gctx = errgroup.WithContext(s.bgCtx)
	s.group.Go(func() error { return s.runEmbedder(gctx) })
}

// runEmbedder is the single consumer: it drains the work channel in
// fixed-size batches, truncating when the hard budget runs out, and checks
// the cancellation signal between batches.
func (s *Session) runEmbedder(ctx context.Context) error {
	batchSize := s.opts.Pipeline.EmbedBatchSize
	batch := make([]*domain.Segment, 0, batchSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case seg, ok := <-s.work:
			if !ok {
				return s.flush(ctx, &batch)
			}
			batch = append(batch, seg)

		topUp:
			for len(batch) < batchSize {
				select {
				case next, more := <-s.work:
					if !more {
						return s.flush(ctx, &batch)
					}
					batch = append(batch, next)
				default:
					break topUp
				}
			}
			if err := s.flush(ctx, &batch); err != nil {
				return err
			}
		}
	}
}

func (s *Session) flush(ctx context.Context, batch *[]*domain.Segment) error {
	pending := *batch
	*batch = (*batch)[:0]
	if len(pending) == 0 {
		return nil
	}

	remaining := int64(s.opts.Pipeline.GlobalEmbedBudget) - s.embedded.Load()
	if remaining <= 0 {
		s.exhausted.Store(true)
		return nil
	}
	if int64(len(pending)) > remaining {
		pending = pending[:remaining]
		s.exhausted.Store(true)
	}

	texts := make([]string, len(pending))
	for i, seg := range pending {
		texts[i] = seg.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		// Best effort: a failed batch costs coverage, not the document.
		s.logger.Warn("embed_batch_failed", "batch_size", len(pending), "error", err)
		return nil
	}
	if len(vectors) != len(pending) {
		s.logger.Warn("embed_batch_short", "want", len(pending), "got", len(vectors))
		if len(vectors) > len(pending) {
			vectors = vectors[:len(pending)]
		}
		pending = pending[:len(vectors)]
	}

	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		dim := s.vectorDim.Load()
		if dim == 0 {
			s.vectorDim.CompareAndSwap(0, int32(len(vec)))
		} else if int32(len(vec)) != dim {
			return domain.WrapError(
				domain.ErrDimensionMismatch,
				"background embed",
				fmt.Errorf("vector length %d, want %d", len(vec), dim),
			)
		}
		pending[i].Embedding = vec
		s.profile.absorb(pending[i].Text)
		s.embedded.Add(1)
	}
	return nil
}

// Finalize signals end of input, waits (bounded) for the queue to drain,
// cancels the background task and runs the one-and-only ranking pass.
// Past the drain deadline it proceeds with whatever got embedded: a partial
// ranked result beats a hung pipeline.
func (s *Session) Finalize(ctx context.Context) (*domain.ExtractionResult, error) {
	if !s.state.CompareAndSwap(stateReceiving, stateFinalizing) &&
		!s.state.CompareAndSwap(stateIdle, stateFinalizing) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "finalize", errors.New("session already finalized"))
	}

	s.closeIntake.Do(func() { close(s.work) })

	if err := s.awaitDrain(ctx); err != nil {
		return nil, err
	}

	segments := s.segs.snapshot()
	centroid, err := embeddedCentroid(segments)
	if err != nil {
		return nil, err
	}
	ranked := rankMMR(segments, centroid, s.contentType, s.opts)
	top := headBySalience(ranked, len(segments), s.opts)

	s.state.Store(stateDone)
	s.logger.Info("stream_extraction_done",
		"chunks", s.chunks.Load(),
		"skipped_chunks", s.skipped.Load(),
		"segments", len(segments),
		"embedded", s.embedded.Load(),
		"top", len(top),
		"duration_ms", float64(time.Since(s.startedAt).Microseconds())/1000.0,
	)

	return &domain.ExtractionResult{
		Segments:      segments,
		TopBySalience: top,
		Centroid:      centroid,
		ContentType:   s.contentType,
		EmbeddedCount: int(s.embedded.Load()),
		Elapsed:       time.Since(s.startedAt),
	}, nil
}

func (s *Session) awaitDrain(ctx context.Context) error {
	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if !started {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		s.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	case <-time.After(s.opts.Pipeline.DrainWait):
		s.logger.Warn("background_embed_stall",
			"drain_wait", s.opts.Pipeline.DrainWait.String(),
			"embedded", s.embedded.Load(),
			"enqueued", s.enqueued.Load(),
		)
		s.cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

// SessionStats is a point-in-time view for telemetry.
type SessionStats struct {
	Chunks          int64
	SkippedChunks   int64
	Segments        int
	Enqueued        int64
	Embedded        int64
	BudgetExhausted bool
}

func (s *Session) Stats() SessionStats {
	return SessionStats{
		Chunks:          s.chunks.Load(),
		SkippedChunks:   s.skipped.Load(),
		Segments:        s.segs.len(),
		Enqueued:        s.enqueued.Load(),
		Embedded:        s.embedded.Load(),
		BudgetExhausted: s.exhausted.Load(),
	}
}

func (s *Session) ID() string {
	return s.id
}
