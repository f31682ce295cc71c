// Package resolve links contract vendors to award vendors across the UEI,
// CAGE and DUNS identifier schemes with a normalized-name fallback.
package resolve

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists legal entity suffix tokens stripped during name
// normalization. Tokens are compared after punctuation removal, so
// "L.L.C." arrives here as "llc".
var legalSuffixes = map[string]bool{
	"llc": true, "lc": true, "pllc": true,
	"inc": true, "incorporated": true,
	"corp": true, "corporation": true,
	"ltd": true, "limited": true,
	"lp": true, "llp": true, "lllp": true,
	"pc": true, "pa": true,
	"co": true, "company": true,
	"plc": true, "na": true,
	"dba": true,
}

// dropRunes are removed outright so abbreviations collapse ("L.L.C." -> "llc",
// "Joe's" -> "joes"). Every other punctuation rune becomes a space.
var dropRunes = map[rune]bool{
	'.':  true,
	'\'': true,
	'’':  true,
	'`':  true,
}

var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes an entity name for matching by:
//  1. Folding compatibility forms and removing diacritics
//  2. Lowercasing
//  3. Rewriting "&" as "and" and "d/b/a" as "dba"
//  4. Stripping punctuation
//  5. Removing trailing legal suffixes (repeatedly, keeping at least one token)
//  6. Collapsing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldMarks, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)
	name = strings.NewReplacer("&", " and ", "d/b/a", " dba ").Replace(name)

	name = strings.Map(func(r rune) rune {
		switch {
		case dropRunes[r]:
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, name)

	tokens := strings.Fields(name)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// sortTokens returns the whitespace tokens of s sorted and re-joined.
func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// blockFiller lists tokens too common to bucket on by themselves.
var blockFiller = map[string]bool{"and": true, "the": true, "of": true, "dba": true}

// blockKeys returns the distinct tokens of a normalized name, used to
// bucket names for fuzzy comparison. Word order and a typo in any one
// token do not keep two names out of a shared bucket. Filler words are
// skipped unless the name has nothing else.
func blockKeys(normalized string) []string {
	tokens := strings.Fields(normalized)
	seen := make(map[string]bool, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if blockFiller[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keys = append(keys, tok)
	}
	if len(keys) == 0 && len(tokens) > 0 {
		return []string{tokens[0]}
	}
	return keys
}
