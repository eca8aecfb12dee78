package extract

import (
	"regexp"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// Section and prose patterns behind content-type weighting. Reference
// constants, not invariants: tune here, nowhere else.
var (
	referenceSectionRe = regexp.MustCompile(`(?i)\b(references?|bibliography|works cited)\b`)
	appendixSectionRe  = regexp.MustCompile(`(?i)\b(appendix|appendices|acknowledg\w*)\b`)
	abstractSectionRe  = regexp.MustCompile(`(?i)\babstract\b`)
	introOutroRe       = regexp.MustCompile(`(?i)\b(introduction|conclusions?)\b`)
	summarySectionRe   = regexp.MustCompile(`(?i)\b(summary|overview)\b`)
	resultsSectionRe   = regexp.MustCompile(`(?i)\b(results?|discussion)\b`)

	speechVerbRe = regexp.MustCompile(`(?i)\b(said|asked|replied|answered|shouted|whispered|exclaimed|muttered|cried)\b`)
	actionVerbRe = regexp.MustCompile(`(?i)\b(ran|rushed|grabbed|seized|struck|fought|jumped|threw|fled|charged|leapt)\b`)
	sceneWordRe  = regexp.MustCompile(`(?i)\b(morning|evening|night|dawn|dusk|rain|snow|wind|shadow|valley|forest|street|harbour|harbor)\b`)
	// Title plus capitalized surname marks a character introduction.
	characterIntroRe = regexp.MustCompile(`\b(Mr|Mrs|Ms|Miss|Dr|Professor|Captain|Colonel|Lord|Lady|Sir)\.?\s+[A-Z][a-z]+`)
	dialogueOpenRe   = regexp.MustCompile("^[\"'“‘]")
)

// lengthQuality penalizes fragments and mildly rewards substantial segments.
// Below IdealMinLength the factor falls linearly toward
// MinLengthQualityScore; from IdealMinLength up it climbs to 1.1 at
// IdealMaxLength.
func lengthQuality(textLen int, o Options) float64 {
	if textLen <= 0 {
		return o.MinLengthQualityScore
	}
	if textLen < o.IdealMinLength {
		frac := float64(textLen) / float64(o.IdealMinLength)
		return o.MinLengthQualityScore + (1.0-o.MinLengthQualityScore)*frac
	}
	span := o.IdealMaxLength - o.IdealMinLength
	if span <= 0 {
		return 1.1
	}
	frac := float64(textLen-o.IdealMinLength) / float64(span)
	if frac > 1 {
		frac = 1
	}
	return 1.0 + 0.1*frac
}

// contentTypeWeight combines the length-quality curve with genre-specific
// multipliers. Unknown content is treated as expository without the
// section-title multipliers, which are the only genre-committed signals.
func contentTypeWeight(seg *domain.Segment, contentType domain.ContentType, o Options) float64 {
	w := lengthQuality(len(seg.Text), o)
	switch contentType {
	case domain.ContentNarrative:
		return w * narrativeWeight(seg)
	case domain.ContentExpository:
		return w * expositoryWeight(seg, o, true)
	default:
		return w * expositoryWeight(seg, o, false)
	}
}

func expositoryWeight(seg *domain.Segment, o Options, sectionSignals bool) float64 {
	w := 1.0

	if seg.Type == domain.SegmentCodeBlock {
		w *= 0.2
	}
	if seg.Type == domain.SegmentHeading {
		w *= o.HeadingBoost
		if seg.HeadingLevel <= 1 {
			w *= o.DocumentTitleBoost
		}
	}
	if !sectionSignals {
		return w
	}

	switch {
	case referenceSectionRe.MatchString(seg.SectionTitle):
		w *= 0.12
	case appendixSectionRe.MatchString(seg.SectionTitle):
		w *= 0.2
	case abstractSectionRe.MatchString(seg.SectionTitle):
		w *= 2.5
	case introOutroRe.MatchString(seg.SectionTitle):
		w *= 1.8
	case summarySectionRe.MatchString(seg.SectionTitle):
		w *= 1.6
	case resultsSectionRe.MatchString(seg.SectionTitle):
		w *= 1.3
	}
	return w
}

func narrativeWeight(seg *domain.Segment) float64 {
	text := seg.Text
	isDialogue := seg.Type == domain.SegmentQuote || dialogueOpenRe.MatchString(text)

	if isDialogue {
		if len(text) < 30 {
			if speechVerbRe.MatchString(text) {
				return 0.55
			}
			return 0.2
		}
		if speechVerbRe.MatchString(text) {
			return 0.6
		}
		return 1.0
	}

	w := 1.2
	if actionVerbRe.MatchString(text) {
		w *= 1.3
	}
	if sceneWordRe.MatchString(text) {
		w *= 1.2
	}
	if characterIntroRe.MatchString(text) {
		w *= 1.4
	}
	if len(text) > 150 {
		w *= 1.2
	}
	return w
}
