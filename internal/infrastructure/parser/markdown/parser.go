// Package markdown turns converted markdown text into the section shape the
// extraction engine consumes: headings with breadcrumb paths, weighted
// sentences, list items, fenced code blocks and block quotes.
package markdown

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	fenceRe    = regexp.MustCompile("^(```|~~~)\\s*([A-Za-z0-9_+-]*)\\s*$")
	listItemRe = regexp.MustCompile(`^\s{0,3}(?:[-*+]|\d{1,3}[.)])\s+(.+)$`)
	quoteRe    = regexp.MustCompile(`^>\s?(.*)$`)
)

type Parser struct {
	contentType domain.ContentType
}

func New() *Parser {
	return &Parser{contentType: domain.ContentUnknown}
}

// WithContentType fixes the document genre instead of leaving it unknown.
func (p *Parser) WithContentType(ct domain.ContentType) *Parser {
	out := *p
	out.contentType = ct
	return &out
}

func (p *Parser) Parse(text string, sanitize bool) (*domain.ParsedDocument, error) {
	if sanitize {
		text = sanitizeText(text)
	}
	doc := &domain.ParsedDocument{ContentType: p.contentType}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	// breadcrumb[level] is the open heading at that depth.
	breadcrumb := make([]string, 0, 6)
	section := domain.ParsedSection{}
	flushSection := func() {
		if section.Title == "" && len(section.Sentences) == 0 &&
			len(section.ListItems) == 0 && len(section.CodeBlocks) == 0 && len(section.Quotes) == 0 {
			return
		}
		doc.Sections = append(doc.Sections, section)
	}

	var paragraph strings.Builder
	flushParagraph := func() {
		if paragraph.Len() == 0 {
			return
		}
		for _, sentence := range splitSentences(paragraph.String()) {
			section.Sentences = append(section.Sentences, domain.WeightedSentence{
				Text:   sentence,
				Weight: 1.0,
			})
		}
		paragraph.Reset()
	}

	var (
		inFence   bool
		fenceMark string
		fenceLang string
		fenceBody strings.Builder
	)

	for _, line := range strings.Split(text, "\n") {
		if inFence {
			trimmed := strings.TrimSpace(line)
			if trimmed == fenceMark {
				inFence = false
				if body := strings.TrimRight(fenceBody.String(), "\n"); strings.TrimSpace(body) != "" {
					section.CodeBlocks = append(section.CodeBlocks, domain.CodeBlock{
						Language: fenceLang,
						Text:     body,
					})
				}
				fenceBody.Reset()
				continue
			}
			fenceBody.WriteString(line)
			fenceBody.WriteByte('\n')
			continue
		}

		if m := fenceRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flushParagraph()
			inFence = true
			fenceMark = m[1]
			fenceLang = strings.ToLower(m[2])
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			flushSection()

			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if level == 1 && doc.Title == "" {
				doc.Title = title
			}
			if level <= len(breadcrumb) {
				breadcrumb = breadcrumb[:level-1]
			}
			breadcrumb = append(breadcrumb, title)

			section = domain.ParsedSection{
				Title: title,
				Level: level,
				Path:  append([]string(nil), breadcrumb...),
			}
			continue
		}

		if m := quoteRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			if quoted := strings.TrimSpace(m[1]); quoted != "" {
				section.Quotes = append(section.Quotes, quoted)
			}
			continue
		}

		if m := listItemRe.FindStringSubmatch(line); m != nil {
			flushParagraph()
			section.ListItems = append(section.ListItems, strings.TrimSpace(m[1]))
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushParagraph()
			continue
		}

		if paragraph.Len() > 0 {
			paragraph.WriteByte(' ')
		}
		paragraph.WriteString(strings.TrimSpace(line))
	}

	// An unterminated fence is treated as code to the end of input.
	if inFence {
		if body := strings.TrimRight(fenceBody.String(), "\n"); strings.TrimSpace(body) != "" {
			section.CodeBlocks = append(section.CodeBlocks, domain.CodeBlock{Language: fenceLang, Text: body})
		}
	}
	flushParagraph()
	flushSection()
	return doc, nil
}

// sanitizeText strips control characters and normalizes line endings. Tabs
// and newlines survive; everything else non-printable is dropped.
func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sentenceEndRe = regexp.MustCompile(`([.!?]["')\]]?)\s+`)

// splitSentences is a pragmatic splitter: terminator plus whitespace ends a
// sentence unless the preceding token looks like an initialism or a number.
func splitSentences(paragraph string) []string {
	paragraph = strings.TrimSpace(paragraph)
	if paragraph == "" {
		return nil
	}

	marks := sentenceEndRe.FindAllStringIndex(paragraph, -1)
	out := make([]string, 0, len(marks)+1)
	start := 0
	for _, m := range marks {
		candidate := paragraph[start:m[1]]
		if looksLikeAbbreviation(strings.TrimSpace(candidate)) {
			continue
		}
		sentence := strings.TrimSpace(candidate)
		if sentence != "" {
			out = append(out, sentence)
		}
		start = m[1]
	}
	if rest := strings.TrimSpace(paragraph[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func looksLikeAbbreviation(sentence string) bool {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return false
	}
	last := strings.TrimRight(fields[len(fields)-1], `"')]`)
	core := strings.TrimSuffix(last, ".")
	// "e.g." / "i.e." / "v1.2." style tails, or a bare initial like "J.".
	if strings.Contains(core, ".") {
		return true
	}
	runes := []rune(core)
	return len(runes) == 1 && unicode.IsUpper(runes[0])
}
