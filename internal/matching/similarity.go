package matching

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

const (
	keyTermBoost    = 0.15
	maxKeyTermBoost = 0.30
)

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// Matcher is a MatchConfig compiled for repeated scoring. It is safe for
// concurrent use.
type Matcher struct {
	rules    []compiledRule
	keyTerms []string
}

// NewMatcher compiles cfg. Rules with an empty term are ignored.
func NewMatcher(cfg domain.MatchConfig) *Matcher {
	m := &Matcher{
		rules:    make([]compiledRule, 0, len(cfg.Normalizations)),
		keyTerms: append([]string(nil), cfg.KeyTerms...),
	}
	for _, r := range cfg.Normalizations {
		if r.Term == "" {
			continue
		}
		m.rules = append(m.rules, compiledRule{
			re:          wholeWord(r.Term),
			replacement: r.Replacement,
		})
	}
	return m
}

// wholeWord builds a case-insensitive matcher for term. Word boundaries are
// only asserted on sides where the term starts or ends with a word character,
// so "u.s." still matches before a space.
func wholeWord(term string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)")
	if first, _ := utf8.DecodeRuneInString(term); isWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(term))
	if last, _ := utf8.DecodeLastRuneInString(term); isWordRune(last) {
		b.WriteString(`\b`)
	}
	return regexp.MustCompile(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Normalize applies every rule in order.
func (m *Matcher) Normalize(question string) string {
	for _, r := range m.rules {
		question = r.re.ReplaceAllLiteralString(question, r.replacement)
	}
	return question
}

func (m *Matcher) keywords(question string) keywordSet {
	return keywords(m.Normalize(question))
}

// Similarity scores two questions in [0,1].
func (m *Matcher) Similarity(a, b string) float64 {
	return m.score(m.keywords(a), m.keywords(b))
}

func (m *Matcher) score(a, b keywordSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	jaccard := float64(inter) / float64(union)

	shared := 0
	for _, term := range m.keyTerms {
		_, inA := a[term]
		_, inB := b[term]
		if inA && inB {
			shared++
		}
	}
	boost := math.Min(float64(shared)*keyTermBoost, maxKeyTermBoost)

	return math.Min(jaccard+boost, 1)
}

// Similarity is a one-shot convenience around NewMatcher(cfg).Similarity.
func Similarity(a, b string, cfg domain.MatchConfig) float64 {
	return NewMatcher(cfg).Similarity(a, b)
}
