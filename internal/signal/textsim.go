package signal

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// stopwords are dropped before term vectors are built.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "are": true, "was": true, "were": true,
	"will": true, "have": true, "has": true, "not": true, "but": true,
	"its": true, "into": true, "our": true, "their": true, "which": true,
	"these": true, "such": true, "can": true, "been": true, "also": true,
	"using": true, "use": true, "used": true, "based": true, "new": true,
	"phase": true, "proposed": true, "project": true, "effort": true,
}

// Tokenize lowercases text and splits it into alphanumeric terms of at
// least three characters, dropping stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// CosineSimilarity compares two texts as term-frequency vectors and
// returns a score in [0, 1]. Empty inputs score zero.
func CosineSimilarity(a, b string) float64 {
	va, vb := termFreq(Tokenize(a)), termFreq(Tokenize(b))
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	// Iterate in sorted order so the float sums are reproducible.
	terms := make([]string, 0, len(va))
	for t := range va {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var dot float64
	for _, t := range terms {
		dot += va[t] * vb[t]
	}
	sim := dot / (norm(va) * norm(vb))
	if sim > 1 {
		sim = 1
	}
	return sim
}

func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func norm(v map[string]float64) float64 {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += v[k] * v[k]
	}
	return math.Sqrt(sum)
}
