package extract

import (
	"regexp"
	"strings"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// coverageSet holds segment indices that must survive every filtering stage.
type coverageSet map[int]struct{}

func (c coverageSet) has(index int) bool {
	_, ok := c[index]
	return ok
}

const (
	coverageFloor       = 50
	coverageDivisor     = 7
	realHeadingCap      = 50
	headingFallbackTake = 20
	sectionNoiseLimit   = 50
	quoteCap            = 5
	keywordCodeCap      = 10
)

var (
	chapterMarkerRe = regexp.MustCompile(`(?i)\b(chapter|section|part|appendix)\b|^\d+(\.\d+)*[.)]?\s`)
	constraintRe    = regexp.MustCompile(`(?i)\d+(\.\d+)?\s?%|[$€£]\s?\d|\b(must|shall|should|warning|caution|require[sd]?)\b|note:`)
)

var runtimeCodeKeywords = []string{
	"docker", "kubernetes", "deploy", "install", "config",
	"server", "port", "env", "build", "run",
}

// guaranteedCoverage selects the bounded set of segments exempt from all
// later filtering. Rules run in priority order and each is capped so no
// single rule can dominate; selection stops once the overall cap is hit.
func guaranteedCoverage(segments []*domain.Segment) coverageSet {
	if len(segments) == 0 {
		return coverageSet{}
	}

	limit := len(segments) / coverageDivisor
	if limit < coverageFloor {
		limit = coverageFloor
	}

	set := make(coverageSet, limit)
	add := func(seg *domain.Segment) bool {
		if len(set) >= limit {
			return false
		}
		set[seg.Index] = struct{}{}
		return true
	}

	if !addRealHeadings(segments, add) {
		return set
	}
	if !addSectionBoundaries(segments, add) {
		return set
	}
	if !addConstraintSentences(segments, add) {
		return set
	}
	if !addQuotes(segments, add) {
		return set
	}
	addKeyCodeBlocks(segments, add)
	return set
}

func addRealHeadings(segments []*domain.Segment, add func(*domain.Segment) bool) bool {
	real := make([]*domain.Segment, 0, realHeadingCap)
	for _, seg := range segments {
		if seg.Type != domain.SegmentHeading || len(seg.Text) >= 100 {
			continue
		}
		if seg.HeadingLevel <= 3 || chapterMarkerRe.MatchString(seg.Text) {
			real = append(real, seg)
			if len(real) == realHeadingCap {
				break
			}
		}
	}

	// Parser noise or flat documents yield almost no qualifying headings;
	// take the first headings of any shape instead.
	if len(real) < 3 {
		real = real[:0]
		for _, seg := range segments {
			if seg.Type != domain.SegmentHeading {
				continue
			}
			real = append(real, seg)
			if len(real) == headingFallbackTake {
				break
			}
		}
	}

	for _, seg := range real {
		if !add(seg) {
			return false
		}
	}
	return true
}

func addSectionBoundaries(segments []*domain.Segment, add func(*domain.Segment) bool) bool {
	type boundary struct{ first, last *domain.Segment }
	order := make([]string, 0, 16)
	bySection := make(map[string]*boundary, 16)
	sentenceCount := 0

	for _, seg := range segments {
		if seg.Type != domain.SegmentSentence {
			continue
		}
		sentenceCount++
		b, ok := bySection[seg.SectionTitle]
		if !ok {
			b = &boundary{first: seg}
			bySection[seg.SectionTitle] = b
			order = append(order, seg.SectionTitle)
		}
		b.last = seg
	}

	// An implausible section count means the parser fragmented the document;
	// evenly spaced sentence sampling preserves coverage without trusting it.
	if len(order) > sectionNoiseLimit {
		return addSpacedSentences(segments, sentenceCount, add)
	}

	for _, title := range order {
		b := bySection[title]
		if !add(b.first) {
			return false
		}
		if b.last != b.first && !add(b.last) {
			return false
		}
	}
	return true
}

func addSpacedSentences(segments []*domain.Segment, sentenceCount int, add func(*domain.Segment) bool) bool {
	take := 2 * sectionNoiseLimit
	if take > sentenceCount {
		take = sentenceCount
	}
	if take == 0 {
		return true
	}
	stride := sentenceCount / take
	if stride < 1 {
		stride = 1
	}
	seen := 0
	for _, seg := range segments {
		if seg.Type != domain.SegmentSentence {
			continue
		}
		if seen%stride == 0 {
			if !add(seg) {
				return false
			}
		}
		seen++
	}
	return true
}

func addConstraintSentences(segments []*domain.Segment, add func(*domain.Segment) bool) bool {
	for _, seg := range segments {
		if seg.Type != domain.SegmentSentence && seg.Type != domain.SegmentListItem {
			continue
		}
		if !constraintRe.MatchString(seg.Text) {
			continue
		}
		if !add(seg) {
			return false
		}
	}
	return true
}

func addQuotes(segments []*domain.Segment, add func(*domain.Segment) bool) bool {
	taken := 0
	for _, seg := range segments {
		if seg.Type != domain.SegmentQuote {
			continue
		}
		if !add(seg) {
			return false
		}
		taken++
		if taken == quoteCap {
			break
		}
	}
	return true
}

func addKeyCodeBlocks(segments []*domain.Segment, add func(*domain.Segment) bool) {
	taken := 0
	firstInSection := make(map[string]bool, 8)

	for _, seg := range segments {
		if seg.Type != domain.SegmentCodeBlock {
			continue
		}
		lower := strings.ToLower(seg.Text)
		keyworded := false
		for _, kw := range runtimeCodeKeywords {
			if strings.Contains(lower, kw) {
				keyworded = true
				break
			}
		}
		first := !firstInSection[seg.SectionTitle]
		firstInSection[seg.SectionTitle] = true

		if keyworded && taken < keywordCodeCap {
			if !add(seg) {
				return
			}
			taken++
			continue
		}
		if first {
			if !add(seg) {
				return
			}
		}
	}
}
