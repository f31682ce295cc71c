// Package model defines the records exchanged between the transition
// detection stages: awards, contracts, patents, vendor matches, signals,
// evidence bundles and detections.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Phase is the ordinal funding phase of a research award.
type Phase string

const (
	PhaseI   Phase = "I"
	PhaseII  Phase = "II"
	PhaseIII Phase = "III"
)

// ParsePhase accepts the common spellings found in award extracts
// ("Phase II", "2", "ii").
func ParsePhase(s string) Phase {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "PHASE")
	s = strings.TrimSpace(s)
	switch s {
	case "I", "1":
		return PhaseI
	case "II", "2":
		return PhaseII
	case "III", "3":
		return PhaseIII
	default:
		return Phase(s)
	}
}

// Duration returns the nominal period of performance in months, used to
// infer a completion date when the source omits one.
func (p Phase) Duration() int {
	switch p {
	case PhaseI:
		return 6
	case PhaseII, PhaseIII:
		return 24
	default:
		return 12
	}
}

// Award is a funded small-business research award.
type Award struct {
	ID             string     `json:"award_id"`
	Vendor         VendorIDs  `json:"vendor_ids"`
	VendorName     string     `json:"vendor_name"`
	Agency         string     `json:"agency"`
	SubAgency      string     `json:"sub_agency,omitempty"`
	AwardDate      *time.Time `json:"award_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	Phase          Phase      `json:"phase"`
	TechArea       string     `json:"tech_area,omitempty"`
	Abstract       string     `json:"abstract,omitempty"`
}

// EffectiveCompletion returns the completion date, inferring it from the
// award date plus the phase duration when absent. ok is false when neither
// date is known.
func (a *Award) EffectiveCompletion() (t time.Time, ok bool) {
	if a.CompletionDate != nil {
		return *a.CompletionDate, true
	}
	if a.AwardDate != nil {
		return a.AwardDate.AddDate(0, a.Phase.Duration(), 0), true
	}
	return time.Time{}, false
}

// VendorRecord returns the award-side vendor identity.
func (a *Award) VendorRecord() VendorRecord {
	return VendorRecord{IDs: a.Vendor, Name: a.VendorName}
}

// Validate reports a malformed award: one missing its identifier or any
// usable completion date.
func (a *Award) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return eris.New("award: missing award id")
	}
	if _, ok := a.EffectiveCompletion(); !ok {
		return eris.Errorf("award %s: missing completion and award date", a.ID)
	}
	return nil
}
