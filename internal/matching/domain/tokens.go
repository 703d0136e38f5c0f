package domain

import (
	"strings"
	"unicode"
)

const (
	minTokenLength = 3
	maxTokens      = 40
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"this": {}, "that": {}, "each": {}, "per": {}, "are": {}, "was": {},
	"has": {}, "have": {}, "not": {}, "all": {}, "any": {}, "our": {},
	"your": {}, "pcs": {}, "pc": {}, "unit": {}, "units": {}, "item": {},
}

// Tokenize lower-cases text and returns its distinct significant words in
// first-seen order, capped at maxTokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < minTokenLength {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
		if len(tokens) == maxTokens {
			break
		}
	}
	return tokens
}

// Jaccard returns |a∩b| / |a∪b| over token sets, 0 when both are empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	union := len(set)
	for _, t := range b {
		if _, ok := set[t]; ok {
			shared++
			continue
		}
		union++
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
