package resolve

import (
	"github.com/sells-group/transition-cli/internal/model"
)

// Confidence assigned to each exact identifier match.
const (
	ConfidenceUEI  = 0.99
	ConfidenceCAGE = 0.95
	ConfidenceDUNS = 0.90
)

// DefaultFuzzyThreshold is the minimum name similarity for a fuzzy match.
const DefaultFuzzyThreshold = 0.90

// Resolver links a contract vendor to an award vendor. It is stateless and
// safe for concurrent use.
type Resolver struct {
	fuzzyThreshold float64
}

// NewResolver creates a Resolver. A non-positive threshold selects
// DefaultFuzzyThreshold.
func NewResolver(fuzzyThreshold float64) *Resolver {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	return &Resolver{fuzzyThreshold: fuzzyThreshold}
}

// FuzzyThreshold returns the configured name similarity cutoff.
func (r *Resolver) FuzzyThreshold() float64 { return r.fuzzyThreshold }

// Resolve applies the fallback chain UEI -> CAGE -> DUNS -> fuzzy name and
// returns the first match, or nil when no rule succeeds.
func (r *Resolver) Resolve(award, contract model.VendorRecord) *model.VendorMatch {
	return r.resolve(award.IDs.Normalized(), NormalizeName(award.Name),
		contract.IDs.Normalized(), NormalizeName(contract.Name))
}

// resolve works on pre-normalized inputs so index lookups avoid repeating
// normalization per candidate.
func (r *Resolver) resolve(aIDs model.VendorIDs, aName string, cIDs model.VendorIDs, cName string) *model.VendorMatch {
	if aIDs.UEI != "" && aIDs.UEI == cIDs.UEI {
		return &model.VendorMatch{Method: model.MatchUEI, Confidence: ConfidenceUEI, MatchedValue: aIDs.UEI}
	}
	if aIDs.CAGE != "" && aIDs.CAGE == cIDs.CAGE {
		return &model.VendorMatch{Method: model.MatchCAGE, Confidence: ConfidenceCAGE, MatchedValue: aIDs.CAGE}
	}
	if aIDs.DUNS != "" && aIDs.DUNS == cIDs.DUNS {
		return &model.VendorMatch{Method: model.MatchDUNS, Confidence: ConfidenceDUNS, MatchedValue: aIDs.DUNS}
	}

	sim := normalizedSimilarity(aName, cName)
	if sim >= r.fuzzyThreshold {
		return &model.VendorMatch{Method: model.MatchFuzzyName, Confidence: sim, MatchedValue: cName}
	}
	return nil
}
