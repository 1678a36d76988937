package matching

import (
	"sort"
	"strings"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

const (
	keyTermMinFreq  = 5
	keyTermLimit    = 30
	pluralMinFreq   = 3
	pluralMinLength = 5
)

// BaseRules are the static grammatical and abbreviation rewrites. They run
// before any corpus-derived rule.
var BaseRules = []domain.NormalizationRule{
	{Term: "united states", Replacement: "usa"},
	{Term: "u.s.", Replacement: "usa"},
	{Term: "btc", Replacement: "bitcoin"},
	{Term: "eth", Replacement: "ethereum"},
	{Term: "fed", Replacement: "federal reserve"},
	{Term: "gop", Replacement: "republican"},
	{Term: "republicans", Replacement: "republican"},
	{Term: "democrats", Replacement: "democrat"},
	{Term: "democratic", Replacement: "democrat"},
	{Term: "presidential", Replacement: "president"},
	{Term: "elections", Replacement: "election"},
	{Term: "nominee", Replacement: "nomination"},
	{Term: "exceeds", Replacement: "exceed"},
	{Term: "surpass", Replacement: "exceed"},
	{Term: "interest rates", Replacement: "rates"},
}

// DocumentFrequency counts, for each token, how many questions contain it.
func DocumentFrequency(questions []string) map[string]int {
	freq := make(map[string]int)
	for _, q := range questions {
		for tok := range keywords(q) {
			freq[tok]++
		}
	}
	return freq
}

// BuildMatchConfig derives the key terms and plural rules from the corpus.
// The output depends only on the set of questions, not their order.
func BuildMatchConfig(questions []string) domain.MatchConfig {
	freq := DocumentFrequency(questions)
	return domain.MatchConfig{
		Normalizations: append(append([]domain.NormalizationRule(nil), BaseRules...), pluralRules(freq)...),
		KeyTerms:       keyTerms(freq),
	}
}

func keyTerms(freq map[string]int) []string {
	terms := make([]string, 0)
	for tok, n := range freq {
		if n >= keyTermMinFreq {
			terms = append(terms, tok)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > keyTermLimit {
		terms = terms[:keyTermLimit]
	}
	return terms
}

func pluralRules(freq map[string]int) []domain.NormalizationRule {
	base := make(map[string]struct{}, len(BaseRules))
	for _, r := range BaseRules {
		base[r.Term] = struct{}{}
	}

	var rules []domain.NormalizationRule
	for tok, n := range freq {
		if n < pluralMinFreq || len(tok) < pluralMinLength || !strings.HasSuffix(tok, "s") {
			continue
		}
		if _, dup := base[tok]; dup {
			continue
		}
		singular := strings.TrimSuffix(tok, "s")
		if _, ok := freq[singular]; !ok {
			continue
		}
		rules = append(rules, domain.NormalizationRule{Term: tok, Replacement: singular})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Term < rules[j].Term })
	return rules
}
