package model

import (
	"strings"
	"unicode"
)

// VendorIDs holds the three-tier vendor identifier scheme shared by awards
// and contracts. All fields are optional.
type VendorIDs struct {
	UEI  string `json:"uei,omitempty"`
	CAGE string `json:"cage,omitempty"`
	DUNS string `json:"duns,omitempty"`
}

// Normalized returns a copy with identifiers trimmed, uppercased and DUNS
// reduced to digits and left-padded to nine characters.
func (v VendorIDs) Normalized() VendorIDs {
	return VendorIDs{
		UEI:  strings.ToUpper(strings.TrimSpace(v.UEI)),
		CAGE: strings.ToUpper(strings.TrimSpace(v.CAGE)),
		DUNS: normalizeDUNS(v.DUNS),
	}
}

func normalizeDUNS(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" || strings.Trim(d, "0") == "" {
		return ""
	}
	if len(d) < 9 {
		d = strings.Repeat("0", 9-len(d)) + d
	}
	return d
}

// VendorRecord is a vendor identity as seen from one side of a candidate
// pair.
type VendorRecord struct {
	IDs  VendorIDs `json:"ids"`
	Name string    `json:"name"`
}

// Key returns a stable identifier for the vendor entity, preferring the
// strongest available identifier. Name-only vendors are keyed by the
// caller-supplied normalized name.
func (v VendorRecord) Key(normalizedName string) string {
	ids := v.IDs.Normalized()
	switch {
	case ids.UEI != "":
		return "uei:" + ids.UEI
	case ids.CAGE != "":
		return "cage:" + ids.CAGE
	case ids.DUNS != "":
		return "duns:" + ids.DUNS
	case normalizedName != "":
		return "name:" + normalizedName
	default:
		return ""
	}
}

// MatchMethod identifies which resolution rule linked two vendor records.
type MatchMethod string

const (
	MatchUEI       MatchMethod = "uei"
	MatchCAGE      MatchMethod = "cage"
	MatchDUNS      MatchMethod = "duns"
	MatchFuzzyName MatchMethod = "fuzzy_name"
)

// VendorMatch is the outcome of resolving a contract vendor against an
// award vendor.
type VendorMatch struct {
	Method       MatchMethod `json:"method"`
	Confidence   float64     `json:"confidence"`
	MatchedValue string      `json:"matched_value"`
}
