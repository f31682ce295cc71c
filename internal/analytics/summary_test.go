package analytics

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transition-cli/internal/model"
)

func awardFor(id, uei, name, area string) model.Award {
	return model.Award{ID: id, Vendor: model.VendorIDs{UEI: uei}, VendorName: name, TechArea: area}
}

func detection(awardID, contractID string, score float64, band model.ConfidenceBand, patent bool) model.TransitionDetection {
	d := model.TransitionDetection{
		DetectionID: awardID + "|" + contractID,
		AwardID:     awardID,
		ContractID:  contractID,
		Score:       score,
		Band:        band,
	}
	d.Evidence.Signals.Patent.Status = model.SignalNoEvidence
	if patent {
		d.Evidence.Signals.Patent.Status = model.SignalEvidence
	}
	return d
}

// One prolific vendor that transitions repeatedly, a few single-award
// vendors that mostly do not.
func fixture() ([]model.Award, []model.TransitionDetection) {
	awards := []model.Award{
		awardFor("A1", "V1", "Acme", "Autonomy"),
		awardFor("A2", "V1", "Acme", "Autonomy"),
		awardFor("A3", "V1", "Acme", "Energy"),
		awardFor("A4", "V1", "Acme", "Energy"),
		awardFor("A5", "V1", "Acme", ""),
		awardFor("B1", "V2", "Beta", "Autonomy"),
		awardFor("C1", "V3", "Gamma", "Energy"),
		awardFor("D1", "V4", "Delta", "Autonomy"),
	}
	detections := []model.TransitionDetection{
		detection("A1", "K1", 0.9, model.BandHigh, true),
		detection("A1", "K2", 0.7, model.BandLikely, false),
		detection("A2", "K3", 0.7, model.BandLikely, false),
		detection("A3", "K4", 0.86, model.BandHigh, true),
		detection("A4", "K5", 0.66, model.BandLikely, false),
		detection("B1", "K6", 0.4, model.BandPossible, false),
		detection("D1", "K7", 0.85, model.BandHigh, false),
		detection("Z9", "K8", 0.99, model.BandHigh, false),
	}
	return awards, detections
}

func TestCompute_Rates(t *testing.T) {
	s := Compute(fixture())

	assert.Equal(t, Rate{Count: 5, Total: 8, Value: 0.625}, s.AwardRate)
	assert.Equal(t, Rate{Count: 2, Total: 4, Value: 0.5}, s.CompanyRate)
	assert.LessOrEqual(t, s.CompanyRate.Value, s.AwardRate.Value)

	assert.Equal(t, 7, s.Detections, "detections for unknown awards are ignored")
	assert.Equal(t, BandCounts{High: 3, Likely: 3, Possible: 1}, s.Bands)
}

func TestCompute_TechAreas(t *testing.T) {
	s := Compute(fixture())
	require.Len(t, s.TechAreas, 2)

	auto := s.TechAreas[0]
	assert.Equal(t, "Autonomy", auto.TechArea)
	assert.Equal(t, Rate{Count: 3, Total: 4, Value: 0.75}, auto.Rate)
	assert.Equal(t, Rate{Count: 1, Total: 4, Value: 0.25}, auto.PatentBacked)

	energy := s.TechAreas[1]
	assert.Equal(t, "Energy", energy.TechArea)
	assert.Equal(t, 3, energy.Rate.Total)
	assert.Equal(t, 2, energy.Rate.Count)
	assert.Equal(t, 1, energy.PatentBacked.Count)
}

func TestCompute_Companies(t *testing.T) {
	s := Compute(fixture())
	require.Len(t, s.Companies, 4)

	top := s.Companies[0]
	assert.Equal(t, "uei:V1", top.VendorKey)
	assert.Equal(t, "Acme", top.VendorName)
	assert.Equal(t, 5, top.TotalAwards)
	assert.Equal(t, 4, top.TransitionedAwards)
	assert.Equal(t, 5, top.TotalTransitions)
	assert.InDelta(t, 0.8, top.SuccessRate, 1e-9)
	assert.InDelta(t, (0.9+0.7+0.7+0.86+0.66)/5, top.AverageScore, 1e-9)

	assert.Equal(t, "uei:V4", s.Companies[1].VendorKey)
	assert.Equal(t, "uei:V2", s.Companies[2].VendorKey)
	assert.Equal(t, 0, s.Companies[2].TransitionedAwards)
	assert.InDelta(t, 0.4, s.Companies[2].AverageScore, 1e-9)
	assert.Equal(t, "uei:V3", s.Companies[3].VendorKey)
	assert.Zero(t, s.Companies[3].AverageScore)
}

func TestCompute_OrderIndependent(t *testing.T) {
	awards, detections := fixture()
	want, err := json.Marshal(Compute(awards, detections))
	require.NoError(t, err)

	for shift := 1; shift < len(detections); shift++ {
		rotA := append(append([]model.Award{}, awards[shift%len(awards):]...), awards[:shift%len(awards)]...)
		rotD := append(append([]model.TransitionDetection{}, detections[shift:]...), detections[:shift]...)
		got, err := json.Marshal(Compute(rotA, rotD))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), fmt.Sprintf("shift=%d", shift))
	}
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, nil)
	assert.Equal(t, Rate{}, s.AwardRate)
	assert.Equal(t, Rate{}, s.CompanyRate)
	assert.Empty(t, s.Companies)
	assert.Empty(t, s.TechAreas)
}

// Awards sharing a CAGE code but reported under different UEIs belong to
// one company.
func TestCompute_MergesEntities(t *testing.T) {
	awards := []model.Award{
		{ID: "A1", Vendor: model.VendorIDs{UEI: "U1", CAGE: "K1"}, VendorName: "Acme"},
		{ID: "A2", Vendor: model.VendorIDs{UEI: "U2", CAGE: "K1"}, VendorName: "Acme Corp"},
	}
	s := Compute(awards, []model.TransitionDetection{detection("A2", "C1", 0.9, model.BandHigh, false)})
	require.Len(t, s.Companies, 1)
	assert.Equal(t, 2, s.Companies[0].TotalAwards)
	assert.Equal(t, Rate{Count: 1, Total: 1, Value: 1}, s.CompanyRate)
	assert.Equal(t, Rate{Count: 1, Total: 2, Value: 0.5}, s.AwardRate)
}
