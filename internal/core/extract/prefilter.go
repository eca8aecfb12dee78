package extract

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/doc-salience/internal/core/domain"
	"github.com/kirillkom/doc-salience/internal/core/ports"
)

type prefilterOutcome struct {
	candidates []*domain.Segment
	centroid   []float32
	embedded   int
}

// runPrefilter reduces an oversized document to an embeddable candidate set
// without embedding everything and without a single dominant-theme centroid:
// stratified sample, farthest-point topic anchors, and BM25 retrieval against
// a pseudo-query all contribute candidates; the guaranteed coverage set is
// never dropped.
func runPrefilter(
	ctx context.Context,
	embedder ports.Embedder,
	segments []*domain.Segment,
	coverage coverageSet,
	o Options,
) (*prefilterOutcome, error) {
	budget := o.MaxSegmentsToEmbed

	sample := stratifiedSample(segments, o.PreFilterSampleSize)
	embedded, err := embedMissing(ctx, embedder, sample)
	if err != nil {
		return nil, fmt.Errorf("embed stratified sample: %w", err)
	}

	centroid, err := embeddedCentroid(sample)
	if err != nil {
		return nil, err
	}
	anchors := selectTopicAnchors(sample, o.TopicAnchors)

	query := buildPseudoQuery(sample, segments)
	scores := newBM25Index(segments).score(query)
	lexical := topBM25Candidates(segments, scores, budget)

	union := make([]*domain.Segment, 0, budget)
	inUnion := make(map[int]struct{}, budget)
	addAll := func(segs []*domain.Segment) {
		for _, seg := range segs {
			if _, dup := inUnion[seg.Index]; dup {
				continue
			}
			inUnion[seg.Index] = struct{}{}
			union = append(union, seg)
		}
	}

	covered := make([]*domain.Segment, 0, len(coverage))
	for _, seg := range segments {
		if coverage.has(seg.Index) {
			covered = append(covered, seg)
		}
	}
	addAll(covered)
	addAll(sample)
	addAll(lexical)

	if len(union) < budget {
		addAll(anchorFill(segments, inUnion, anchors, budget-len(union)))
	}

	sort.Slice(union, func(i, j int) bool { return union[i].Index < union[j].Index })

	n, err := embedMissing(ctx, embedder, union)
	if err != nil {
		return nil, fmt.Errorf("embed candidate union: %w", err)
	}
	embedded += n

	return &prefilterOutcome{
		candidates: union,
		centroid:   centroid,
		embedded:   embedded,
	}, nil
}

// stratifiedSample picks all headings plus first/middle/last sentences per
// section, then pads with evenly spaced sentences up to the requested size,
// so every section contributes before any section contributes twice.
func stratifiedSample(segments []*domain.Segment, size int) []*domain.Segment {
	if size <= 0 || len(segments) <= size {
		out := make([]*domain.Segment, len(segments))
		copy(out, segments)
		return out
	}

	sample := make([]*domain.Segment, 0, size)
	inSample := make(map[int]struct{}, size)
	add := func(seg *domain.Segment) bool {
		if len(sample) >= size {
			return false
		}
		if _, dup := inSample[seg.Index]; dup {
			return true
		}
		inSample[seg.Index] = struct{}{}
		sample = append(sample, seg)
		return true
	}

	for _, seg := range segments {
		if seg.Type == domain.SegmentHeading {
			if !add(seg) {
				return sample
			}
		}
	}

	order := make([]string, 0, 32)
	bySection := make(map[string][]*domain.Segment, 32)
	for _, seg := range segments {
		if seg.Type != domain.SegmentSentence {
			continue
		}
		if _, ok := bySection[seg.SectionTitle]; !ok {
			order = append(order, seg.SectionTitle)
		}
		bySection[seg.SectionTitle] = append(bySection[seg.SectionTitle], seg)
	}
	for _, title := range order {
		sentences := bySection[title]
		picks := []*domain.Segment{sentences[0]}
		if len(sentences) > 2 {
			picks = append(picks, sentences[len(sentences)/2])
		}
		if len(sentences) > 1 {
			picks = append(picks, sentences[len(sentences)-1])
		}
		for _, seg := range picks {
			if !add(seg) {
				return sample
			}
		}
	}

	// Pad proportionally across whatever sentences remain.
	remaining := len(segments) - len(sample)
	slots := size - len(sample)
	if slots <= 0 || remaining <= 0 {
		return sample
	}
	stride := remaining / slots
	if stride < 1 {
		stride = 1
	}
	seen := 0
	for _, seg := range segments {
		if _, dup := inSample[seg.Index]; dup {
			continue
		}
		if seg.Type != domain.SegmentSentence {
			continue
		}
		if seen%stride == 0 {
			if !add(seg) {
				break
			}
		}
		seen++
	}
	return sample
}

// topBM25Candidates keeps the best-scoring segments under a per-section cap
// (so one section cannot crowd out the rest) and an overall 2x budget bound.
func topBM25Candidates(segments []*domain.Segment, scores []float64, budget int) []*domain.Segment {
	sectionCount := 0
	seenSection := make(map[string]struct{}, 32)
	for _, seg := range segments {
		if _, ok := seenSection[seg.SectionTitle]; !ok {
			seenSection[seg.SectionTitle] = struct{}{}
			sectionCount++
		}
	}
	perSection := 10
	if sectionCount > 0 && budget/sectionCount > perSection {
		perSection = budget / sectionCount
	}
	overall := 2 * budget

	ranked := make([]int, 0, len(segments))
	for i := range segments {
		if scores[i] > 0 {
			ranked = append(ranked, i)
		}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if scores[ranked[a]] != scores[ranked[b]] {
			return scores[ranked[a]] > scores[ranked[b]]
		}
		return ranked[a] < ranked[b]
	})

	out := make([]*domain.Segment, 0, overall)
	perSectionTaken := make(map[string]int, sectionCount)
	for _, i := range ranked {
		seg := segments[i]
		if perSectionTaken[seg.SectionTitle] >= perSection {
			continue
		}
		perSectionTaken[seg.SectionTitle]++
		out = append(out, seg)
		if len(out) == overall {
			break
		}
	}
	return out
}

// anchorFill tops the union up with the segments closest to any topic
// anchor, using the word-overlap proxy for segments not yet embedded.
func anchorFill(segments []*domain.Segment, taken map[int]struct{}, anchors []topicAnchor, slots int) []*domain.Segment {
	if slots <= 0 || len(anchors) == 0 {
		return nil
	}
	type scored struct {
		seg      *domain.Segment
		affinity float64
	}
	pool := make([]scored, 0, len(segments))
	for _, seg := range segments {
		if _, dup := taken[seg.Index]; dup {
			continue
		}
		pool = append(pool, scored{seg: seg, affinity: maxAnchorAffinity(seg, anchors)})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].affinity != pool[j].affinity {
			return pool[i].affinity > pool[j].affinity
		}
		return pool[i].seg.Index < pool[j].seg.Index
	})
	if slots > len(pool) {
		slots = len(pool)
	}
	out := make([]*domain.Segment, 0, slots)
	for _, s := range pool[:slots] {
		out = append(out, s.seg)
	}
	return out
}
