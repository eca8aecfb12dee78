package extract

import (
	"strings"
	"unicode"
)

// tokenizeAlphaNum lowercases and splits on anything outside [a-z0-9].
// Shared by the BM25 index, the pseudo-query builder and the budget
// controller so all lexical scoring sees identical terms.
func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenizeAlphaNum(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func tokenOverlap(query, other map[string]struct{}) float64 {
	if len(query) == 0 || len(other) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := other[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
		"can", "could", "did", "do", "does", "for", "from", "had", "has",
		"have", "he", "her", "his", "how", "i", "if", "in", "into", "is",
		"it", "its", "may", "more", "my", "no", "not", "of", "on", "one",
		"or", "our", "she", "should", "so", "some", "such", "than", "that",
		"the", "their", "them", "then", "there", "these", "they", "this",
		"to", "up", "was", "we", "were", "what", "when", "which", "while",
		"who", "will", "with", "would", "you", "your",
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}()

func isStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
