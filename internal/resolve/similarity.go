package resolve

import (
	"github.com/agext/levenshtein"
)

// NameSimilarity scores two raw vendor names in [0, 1] using a token-sort
// ratio: both names are normalized, their tokens sorted, and the results
// compared by Levenshtein similarity. Word order differences ("Robotics
// Acme" vs "Acme Robotics") therefore score 1.
func NameSimilarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeName(a), NormalizeName(b))
}

func normalizedSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return levenshtein.Similarity(sortTokens(a), sortTokens(b), nil)
}
