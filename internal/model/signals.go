package model

import "time"

// SignalStatus distinguishes a disabled optional extractor from one that
// ran but found nothing. Both contribute zero to the score.
type SignalStatus string

const (
	SignalDisabled   SignalStatus = "disabled"
	SignalNoEvidence SignalStatus = "no_evidence"
	SignalEvidence   SignalStatus = "evidence"
)

// AgencyLevel is how closely the contracting agency matches the award agency.
type AgencyLevel string

const (
	AgencySame       AgencyLevel = "same_agency"
	AgencyDepartment AgencyLevel = "same_department"
	AgencyNone       AgencyLevel = "none"
)

// AgencySignal captures agency continuity between award and contract.
type AgencySignal struct {
	AwardAgency       string      `json:"award_agency"`
	AwardSubAgency    string      `json:"award_sub_agency,omitempty"`
	ContractAgency    string      `json:"contract_agency"`
	ContractSubAgency string      `json:"contract_sub_agency,omitempty"`
	Level             AgencyLevel `json:"level"`
	Contribution      float64     `json:"contribution"`
}

// TimingSignal captures the gap between award completion and contract start.
type TimingSignal struct {
	CompletionDate time.Time `json:"completion_date"`
	ContractStart  time.Time `json:"contract_start"`
	DaysBetween    int       `json:"days_between"`
	Factor         float64   `json:"factor"`
	InWindow       bool      `json:"in_window"`
	Contribution   float64   `json:"contribution"`
}

// CompetitionSignal captures the contract's competition type.
type CompetitionSignal struct {
	Competition  Competition `json:"competition"`
	Factor       float64     `json:"factor"`
	Contribution float64     `json:"contribution"`
}

// PatentSignal captures patent activity between award completion and
// contract start.
type PatentSignal struct {
	Status           SignalStatus `json:"status"`
	RelevantCount    int          `json:"relevant_count"`
	PreContractCount int          `json:"pre_contract_count"`
	MeanSimilarity   float64      `json:"mean_similarity"`
	PatentIDs        []string     `json:"patent_ids,omitempty"`
	Contribution     float64      `json:"contribution"`
}

// TechAreaSignal captures technology-area alignment.
type TechAreaSignal struct {
	Status           SignalStatus `json:"status"`
	AwardArea        string       `json:"award_area,omitempty"`
	ContractArea     string       `json:"contract_area,omitempty"`
	ContractInferred bool         `json:"contract_inferred,omitempty"`
	Aligned          bool         `json:"aligned"`
	Contribution     float64      `json:"contribution"`
}

// TextSignal captures textual similarity between the award abstract and
// the contract description.
type TextSignal struct {
	Status       SignalStatus `json:"status"`
	Similarity   float64      `json:"similarity"`
	Contribution float64      `json:"contribution"`
}

// TransitionSignals is the full signal set for one candidate pair. Every
// sub-signal is always present; optional ones report SignalDisabled when
// their extractor is off.
type TransitionSignals struct {
	Agency      AgencySignal      `json:"agency"`
	Timing      TimingSignal      `json:"timing"`
	Competition CompetitionSignal `json:"competition"`
	Patent      PatentSignal      `json:"patent"`
	TechArea    TechAreaSignal    `json:"tech_area"`
	Text        TextSignal        `json:"text"`
}

// Contributions itemizes the composite score.
type Contributions struct {
	Base        float64 `json:"base"`
	Agency      float64 `json:"agency"`
	Timing      float64 `json:"timing"`
	Competition float64 `json:"competition"`
	Patent      float64 `json:"patent"`
	TechArea    float64 `json:"tech_area"`
	Text        float64 `json:"text"`
}

// Sum adds the contributions in a fixed order so repeated calls produce the
// same floating-point result.
func (c Contributions) Sum() float64 {
	return c.Base + c.Agency + c.Timing + c.Competition + c.Patent + c.TechArea + c.Text
}
