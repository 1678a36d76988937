// Package matching scores cross-venue question pairs with a keyword model
// derived from the live corpus.
package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenLen is the shortest token kept; anything of length <= 3 is noise.
const minTokenLen = 4

var stopwords = toSet(
	"about", "above", "after", "again", "against", "also", "been", "before",
	"being", "below", "between", "both", "does", "doing", "down", "during",
	"each", "from", "further", "have", "having", "here", "into", "just",
	"least", "less", "more", "most", "much", "only", "other", "over", "same",
	"should", "some", "such", "than", "that", "their", "them", "then", "there",
	"these", "they", "this", "those", "through", "under", "until", "very",
	"were", "what", "when", "where", "which", "while", "will", "with", "within",
	"would", "your",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenize lowercases text, strips punctuation, splits on whitespace and drops
// short tokens and stopwords. Order and duplicates are preserved.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLen {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// keywordSet is the distinct tokens of a question.
type keywordSet map[string]struct{}

func keywords(text string) keywordSet {
	toks := Tokenize(text)
	set := make(keywordSet, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
