package extract

import (
	"sort"
	"sync"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// stableSampleHash mixes a segment's content hash with the session seed
// through a splitmix64 finalizer. Explicitly non-cryptographic: the point is
// that identical text and seed produce identical sampling decisions across
// runs and processes, which Go's runtime map hashing does not guarantee.
func stableSampleHash(contentHash, seed uint64) uint64 {
	x := contentHash ^ seed
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// lexicalProfile is the word-frequency image of everything embedded so far.
// The background task absorbs text while the caller thread scores against
// it, so both paths lock.
type lexicalProfile struct {
	mu    sync.RWMutex
	freq  map[string]int
	total int
}

func newLexicalProfile() *lexicalProfile {
	return &lexicalProfile{freq: make(map[string]int, 1024)}
}

func (p *lexicalProfile) absorb(text string) {
	tokens := tokenizeAlphaNum(text)
	p.mu.Lock()
	for _, token := range tokens {
		if isStopword(token) {
			continue
		}
		p.freq[token]++
		p.total++
	}
	p.mu.Unlock()
}

// score is the cheap centroid proxy for unembedded segments: mean profile
// frequency of the segment's tokens.
func (p *lexicalProfile) score(text string) float64 {
	tokens := tokenizeAlphaNum(text)
	if len(tokens) == 0 {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.total == 0 {
		return 0
	}
	sum := 0
	for _, token := range tokens {
		sum += p.freq[token]
	}
	return float64(sum) / (float64(len(tokens)) * float64(p.total))
}

// budgetController makes the per-chunk embedding decision for segments
// outside the guaranteed subset. A tail reserve is withheld until enough of
// the expected chunks have arrived, so greedy early consumption cannot
// starve late sections; once the unreserved share is gone only the trickle
// path grants slots. The hard budget itself is enforced by the consumer.
type budgetController struct {
	mu             sync.Mutex
	opts           PipelineOptions
	expectedChunks int

	granted      int
	reserve      int
	tailReleased bool
	profile      *lexicalProfile
}

func newBudgetController(opts PipelineOptions, expectedChunks int, profile *lexicalProfile) *budgetController {
	reserve := 0
	if expectedChunks > 0 {
		reserve = int(float64(opts.GlobalEmbedBudget) * opts.TailReserveFraction)
	}
	return &budgetController{
		opts:           opts,
		expectedChunks: expectedChunks,
		reserve:        reserve,
		profile:        profile,
	}
}

func (b *budgetController) noteExpectedChunks(n int) {
	b.mu.Lock()
	if n > b.expectedChunks {
		b.expectedChunks = n
		if b.reserve == 0 && !b.tailReleased {
			b.reserve = int(float64(b.opts.GlobalEmbedBudget) * b.opts.TailReserveFraction)
		}
	}
	b.mu.Unlock()
}

// decide returns the subset of remaining segments to enqueue for this chunk.
func (b *budgetController) decide(chunkIndex int, remaining []*domain.Segment) []*domain.Segment {
	if len(remaining) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReleaseTail(chunkIndex)

	available := b.opts.GlobalEmbedBudget - b.granted - b.reserve
	if available <= 0 {
		return b.trickle(chunkIndex, remaining)
	}

	var picks []*domain.Segment
	if chunkIndex < b.opts.BootstrapChunks {
		picks = b.bootstrapSample(remaining)
	} else {
		picks = b.topByProfile(remaining, b.opts.ChunkCap)
	}
	if len(picks) > available {
		picks = picks[:available]
	}
	b.granted += len(picks)
	return picks
}

// maybeReleaseTail folds the reserve back once the configured fraction of
// expected chunks has arrived.
func (b *budgetController) maybeReleaseTail(chunkIndex int) {
	if b.tailReleased || b.reserve == 0 || b.expectedChunks <= 0 {
		return
	}
	if float64(chunkIndex+1) >= b.opts.TailStartFraction*float64(b.expectedChunks) {
		b.reserve = 0
		b.tailReleased = true
	}
}

// trickle keeps late content from starving entirely after the unreserved
// share is spent: every few chunks a handful of top-scored segments still
// get slots, drawn from whatever hard budget remains.
func (b *budgetController) trickle(chunkIndex int, remaining []*domain.Segment) []*domain.Segment {
	if b.opts.TrickleCount == 0 || (chunkIndex+1)%b.opts.TrickleEveryChunks != 0 {
		return nil
	}
	hardLeft := b.opts.GlobalEmbedBudget - b.granted
	if hardLeft <= 0 {
		return nil
	}
	take := b.opts.TrickleCount
	if take > hardLeft {
		take = hardLeft
	}
	picks := b.topByProfile(remaining, take)
	b.granted += len(picks)
	return picks
}

// bootstrapSample is the deterministic pseudo-random pick used before the
// centroid means anything: a stable hash keeps the sampled set identical
// across independent runs.
func (b *budgetController) bootstrapSample(remaining []*domain.Segment) []*domain.Segment {
	threshold := uint64(b.opts.BootstrapRate * 1000)
	out := make([]*domain.Segment, 0, b.opts.ChunkCap)
	for _, seg := range remaining {
		if stableSampleHash(seg.ContentHash, b.opts.SampleSeed)%1000 < threshold {
			out = append(out, seg)
			if len(out) == b.opts.ChunkCap {
				break
			}
		}
	}
	return out
}

func (b *budgetController) topByProfile(remaining []*domain.Segment, take int) []*domain.Segment {
	if take <= 0 {
		return nil
	}
	type scored struct {
		seg   *domain.Segment
		score float64
	}
	pool := make([]scored, 0, len(remaining))
	for _, seg := range remaining {
		pool = append(pool, scored{
			seg:   seg,
			score: b.profile.score(seg.Text) * seg.PositionWeight,
		})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].seg.Index < pool[j].seg.Index
	})
	if take > len(pool) {
		take = len(pool)
	}
	out := make([]*domain.Segment, 0, take)
	for _, s := range pool[:take] {
		out = append(out, s.seg)
	}
	return out
}
