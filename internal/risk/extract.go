package risk

import (
	"sort"
	"strings"
)

// riskVocabulary is matched by substring, so "pain" also fires for text
// that only mentions "chest pain".
var riskVocabulary = []string{
	"hypertension", "diabetes", "infection", "fever", "pain", "shortness of breath",
	"chest pain", "dizziness", "nausea", "vomiting", "bleeding", "swelling",
	"confusion", "weakness", "fatigue", "weight loss", "weight gain",
}

// Vocabulary returns a copy of the risk factor terms.
func Vocabulary() []string {
	out := make([]string, len(riskVocabulary))
	copy(out, riskVocabulary)
	return out
}

// ExtractRiskFactors returns the Title-Cased vocabulary terms found in
// text. The result has set semantics and is sorted.
func ExtractRiskFactors(text string) []string {
	return MatchTerms(text, riskVocabulary)
}

// MatchTerms lower-cases text and returns every term it contains,
// Title-Cased, deduplicated and sorted.
func MatchTerms(text string, terms []string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			seen[TitleCase(term)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TitleCase upper-cases the first letter of every space separated word.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
