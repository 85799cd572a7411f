package evaluator

import (
	"strings"
	"unicode"
)

// stopwords are excluded from keyword extraction and token-set similarity.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "are": {}, "was": {}, "were": {}, "will": {}, "have": {},
	"has": {}, "had": {}, "you": {}, "your": {}, "our": {}, "their": {},
	"they": {}, "them": {}, "not": {}, "but": {}, "can": {}, "all": {},
	"any": {}, "who": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"about": {}, "into": {}, "over": {}, "under": {},
}

// tokenize lowercases the text and splits it into alphanumeric word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywords returns the distinct non-stopword tokens of minimum length 4.
func keywords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if len(tok) < 4 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// tokenSet returns the distinct non-stopword tokens of the text.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|; 1.0 for two empty sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// sentences splits text on terminal punctuation and newlines, dropping empty
// segments.
func sentences(text string) []string {
	segs := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := segs[:0]
	for _, s := range segs {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
