package model

import "time"

// ConfidenceBand classifies a composite score.
type ConfidenceBand string

const (
	BandHigh     ConfidenceBand = "high"
	BandLikely   ConfidenceBand = "likely"
	BandPossible ConfidenceBand = "possible"
)

// Rank orders bands from lowest (0) to highest confidence.
func (b ConfidenceBand) Rank() int {
	switch b {
	case BandHigh:
		return 2
	case BandLikely:
		return 1
	default:
		return 0
	}
}

// Qualifies reports whether the band counts as a transition in analytics.
func (b ConfidenceBand) Qualifies() bool {
	return b == BandHigh || b == BandLikely
}

// EvidenceSchemaVersion is bumped whenever the bundle layout changes.
const EvidenceSchemaVersion = "1"

// EvidenceBundle is the durable, versioned record of one detection. It is
// never mutated after creation.
type EvidenceBundle struct {
	SchemaVersion    string            `json:"schema_version"`
	DetectionID      string            `json:"detection_id"`
	AwardID          string            `json:"award_id"`
	ContractID       string            `json:"contract_id"`
	Score            float64           `json:"score"`
	Band             ConfidenceBand    `json:"band"`
	Signals          TransitionSignals `json:"signals"`
	VendorMatch      VendorMatch       `json:"vendor_match"`
	Contributions    Contributions     `json:"contributions"`
	AlgorithmVersion string            `json:"algorithm_version"`
	Preset           string            `json:"preset"`
	DetectedAt       time.Time         `json:"detected_at"`
}

// TransitionDetection is the externally visible output unit.
type TransitionDetection struct {
	DetectionID      string         `json:"detection_id"`
	AwardID          string         `json:"award_id"`
	ContractID       string         `json:"contract_id"`
	VendorKey        string         `json:"vendor_key"`
	TechArea         string         `json:"tech_area,omitempty"`
	PatentIDs        []string       `json:"patent_ids,omitempty"`
	Score            float64        `json:"score"`
	Band             ConfidenceBand `json:"band"`
	AlgorithmVersion string         `json:"algorithm_version"`
	Evidence         EvidenceBundle `json:"evidence"`
}

// PatentBacked reports whether the detection carries patent evidence.
func (d *TransitionDetection) PatentBacked() bool {
	return d.Evidence.Signals.Patent.Status == SignalEvidence
}

// CompanyTransitionProfile aggregates detections for one vendor entity.
type CompanyTransitionProfile struct {
	VendorKey          string  `json:"vendor_key"`
	VendorName         string  `json:"vendor_name"`
	TotalAwards        int     `json:"total_awards"`
	TransitionedAwards int     `json:"transitioned_awards"`
	TotalTransitions   int     `json:"total_transitions"`
	SuccessRate        float64 `json:"success_rate"`
	AverageScore       float64 `json:"average_score"`
}
