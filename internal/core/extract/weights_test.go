package extract

import (
	"strings"
	"testing"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

func TestLengthQualityCurve(t *testing.T) {
	o := DefaultOptions()

	if got := lengthQuality(0, o); got != o.MinLengthQualityScore {
		t.Fatalf("expected floor for empty text, got %f", got)
	}
	short := lengthQuality(10, o)
	if short <= o.MinLengthQualityScore || short >= 1.0 {
		t.Fatalf("expected short text between floor and 1.0, got %f", short)
	}
	if got := lengthQuality(o.IdealMinLength, o); got != 1.0 {
		t.Fatalf("expected 1.0 at ideal min length, got %f", got)
	}
	if got := lengthQuality(o.IdealMaxLength, o); got != 1.1 {
		t.Fatalf("expected 1.1 at ideal max length, got %f", got)
	}
	if got := lengthQuality(10*o.IdealMaxLength, o); got != 1.1 {
		t.Fatalf("expected cap at 1.1 for very long text, got %f", got)
	}
}

func TestExpositoryWeightDemotesReferences(t *testing.T) {
	o := DefaultOptions()
	text := strings.Repeat("word ", 12)

	body := makeSentence(0, "Results", text)
	refs := makeSentence(1, "References", text)

	bodyW := contentTypeWeight(body, domain.ContentExpository, o)
	refsW := contentTypeWeight(refs, domain.ContentExpository, o)
	if refsW >= bodyW {
		t.Fatalf("expected references demoted below results: %f >= %f", refsW, bodyW)
	}
}

func TestExpositoryWeightBoostsAbstract(t *testing.T) {
	o := DefaultOptions()
	text := strings.Repeat("word ", 12)

	abstract := makeSentence(0, "Abstract", text)
	plain := makeSentence(1, "Methodology Notes", text)

	if contentTypeWeight(abstract, domain.ContentExpository, o) <= contentTypeWeight(plain, domain.ContentExpository, o) {
		t.Fatal("expected abstract section boosted above plain section")
	}
}

func TestExpositoryWeightBoostsHeadings(t *testing.T) {
	o := DefaultOptions()

	title := makeHeading(0, "The Complete Operations Handbook", 1)
	sub := makeHeading(1, "Appendix Storage Layout Reference Table", 3)
	sub.SectionTitle = "Storage Layout"

	titleW := contentTypeWeight(title, domain.ContentExpository, o)
	subW := contentTypeWeight(sub, domain.ContentExpository, o)
	if titleW <= subW {
		t.Fatalf("expected level-1 title above deeper heading: %f <= %f", titleW, subW)
	}
}

func TestUnknownContentSkipsSectionMultipliers(t *testing.T) {
	o := DefaultOptions()
	text := strings.Repeat("word ", 12)

	refs := makeSentence(0, "References", text)
	plain := makeSentence(1, "Anything Else", text)

	refsW := contentTypeWeight(refs, domain.ContentUnknown, o)
	plainW := contentTypeWeight(plain, domain.ContentUnknown, o)
	if refsW != plainW {
		t.Fatalf("expected unknown content to ignore section titles: %f != %f", refsW, plainW)
	}
}

func TestNarrativeWeightDemotesShortDialogue(t *testing.T) {
	o := DefaultOptions()

	quip := makeSentence(0, "", `"Yes," he said.`)
	prose := makeSentence(1, "", "She ran through the rain across the dark valley toward the distant harbour lights.")

	quipW := contentTypeWeight(quip, domain.ContentNarrative, o)
	proseW := contentTypeWeight(prose, domain.ContentNarrative, o)
	if quipW >= proseW {
		t.Fatalf("expected short dialogue demoted below action prose: %f >= %f", quipW, proseW)
	}
}

func TestNarrativeWeightBoostsCharacterIntroduction(t *testing.T) {
	intro := makeSentence(0, "", "At the gate stood Captain Rowe, watching the road with narrowed eyes and the patience of a hunter.")
	flat := makeSentence(1, "", "At the gate stood a soldier, watching the road with narrowed eyes and the patience of a hunter.")

	if narrativeWeight(intro) <= narrativeWeight(flat) {
		t.Fatal("expected character introduction boosted above plain prose")
	}
}

func TestCodeBlockDemotedInExpository(t *testing.T) {
	o := DefaultOptions()
	code := &domain.Segment{
		Index:          0,
		Type:           domain.SegmentCodeBlock,
		Text:           "docker run --rm -p 8080:8080 salience-server",
		SectionTitle:   "Deployment",
		PositionWeight: 1.0,
	}
	prose := makeSentence(1, "Deployment", "The server listens on port 8080 by default and exits cleanly.")

	if contentTypeWeight(code, domain.ContentExpository, o) >= contentTypeWeight(prose, domain.ContentExpository, o) {
		t.Fatal("expected code block demoted below prose of similar length")
	}
}
