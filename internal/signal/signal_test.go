package signal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestAgency(t *testing.T) {
	tests := []struct {
		name      string
		aAgency   string
		aSub      string
		cAgency   string
		cSub      string
		wantLevel model.AgencyLevel
		want      float64
	}{
		{"same agency same sub", "DOD", "AF", "dod", "af", model.AgencySame, 0.25},
		{"same agency unknown sub", "DOD", "", "DOD", "NAVY", model.AgencySame, 0.25},
		{"same agency different sub", "DOD", "AF", "DOD", "NAVY", model.AgencyDepartment, 0.125},
		{"different agency", "DOD", "AF", "NASA", "AF", model.AgencyNone, 0},
		{"missing agency", "", "", "", "", model.AgencyNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &model.Award{Agency: tt.aAgency, SubAgency: tt.aSub}
			c := &model.Contract{Agency: tt.cAgency, SubAgency: tt.cSub}
			s := Agency(a, c, 0.25)
			assert.Equal(t, tt.wantLevel, s.Level)
			assert.InDelta(t, tt.want, s.Contribution, 1e-9)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day(2022, 1, 1), day(2022, 1, 1)))
	assert.Equal(t, 59, DaysBetween(day(2022, 1, 1), day(2022, 3, 1)))
	assert.Equal(t, -1, DaysBetween(day(2022, 1, 2), day(2022, 1, 1)))
	// Time of day is ignored.
	assert.Equal(t, 1, DaysBetween(
		time.Date(2022, 1, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2022, 1, 2, 1, 0, 0, 0, time.UTC)))
}

func TestTimingFactor(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{-1, 0},
		{0, 1.0},
		{90, 1.0},
		{91, 0.75},
		{365, 0.75},
		{366, 0.5},
		{730, 0.5},
		{731, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, TimingFactor(tt.days), 1e-9, "days=%d", tt.days)
	}
}

func TestTiming_Window(t *testing.T) {
	window := config.WindowConfig{MinDays: 0, MaxDays: 730}
	completion := day(2022, 1, 1)

	s := Timing(completion, completion.AddDate(0, 0, 730), 0.25, window)
	assert.True(t, s.InWindow)
	assert.InDelta(t, 0.125, s.Contribution, 1e-9)

	s = Timing(completion, completion.AddDate(0, 0, 731), 0.25, window)
	assert.False(t, s.InWindow)
	assert.Zero(t, s.Contribution)

	s = Timing(completion, completion.AddDate(0, 0, -1), 0.25, window)
	assert.False(t, s.InWindow)
	assert.Equal(t, -1, s.DaysBetween)

	narrow := config.WindowConfig{MinDays: 0, MaxDays: 365}
	s = Timing(completion, completion.AddDate(0, 0, 400), 0.25, narrow)
	assert.False(t, s.InWindow)
}

func TestCompetition(t *testing.T) {
	assert.InDelta(t, 0.2, Competition(model.CompetitionSoleSource, 0.2).Contribution, 1e-9)
	assert.InDelta(t, 0.1, Competition(model.CompetitionLimited, 0.2).Contribution, 1e-9)
	assert.Zero(t, Competition(model.CompetitionFullAndOpen, 0.2).Contribution)
	assert.Zero(t, Competition(model.CompetitionUnknown, 0.2).Contribution)
}

func TestPatent(t *testing.T) {
	award := &model.Award{Abstract: "adaptive radar signal processing for airborne platforms"}
	completion, start := day(2022, 1, 1), day(2022, 3, 1)
	patents := []model.Patent{
		{ID: "P3", FilingDate: day(2022, 4, 1), Title: "Adaptive radar signal processing"},
		{ID: "P2", FilingDate: day(2022, 2, 1), Title: "Adaptive radar signal processing"},
		{ID: "P1", FilingDate: day(2022, 3, 1), Title: "Adaptive radar signal processing"},
		{ID: "P0", FilingDate: day(2021, 12, 31), Title: "Adaptive radar signal processing"},
	}

	s := Patent(award, completion, start, patents, 0.1, 0.7)
	assert.Equal(t, model.SignalEvidence, s.Status)
	assert.Equal(t, 2, s.RelevantCount)
	assert.Equal(t, 1, s.PreContractCount)
	assert.Equal(t, []string{"P1", "P2"}, s.PatentIDs)
	assert.Greater(t, s.MeanSimilarity, 0.7)
	assert.InDelta(t, 0.1, s.Contribution, 1e-9)
}

func TestPatent_PartialCredit(t *testing.T) {
	award := &model.Award{Abstract: "battery chemistry"}
	completion, start := day(2022, 1, 1), day(2022, 3, 1)

	// Filed on the start date: presence only.
	s := Patent(award, completion, start, []model.Patent{
		{ID: "P1", FilingDate: start, Title: "Optical sensor housing"},
	}, 0.1, 0.7)
	assert.Equal(t, model.SignalEvidence, s.Status)
	assert.InDelta(t, 0.05, s.Contribution, 1e-9)

	// Filed before start but off topic: presence + pre-contract.
	s = Patent(award, completion, start, []model.Patent{
		{ID: "P1", FilingDate: completion, Title: "Optical sensor housing"},
	}, 0.1, 0.7)
	assert.InDelta(t, 0.08, s.Contribution, 1e-9)
}

func TestPatent_NoEvidence(t *testing.T) {
	s := Patent(&model.Award{}, day(2022, 1, 1), day(2022, 3, 1), nil, 0.1, 0.7)
	assert.Equal(t, model.SignalNoEvidence, s.Status)
	assert.Zero(t, s.Contribution)
	assert.Empty(t, s.PatentIDs)
}

func TestPatentIndex_ForVendor(t *testing.T) {
	idx := NewPatentIndex([]model.Patent{
		{ID: "P2", VendorKey: "uei:U1"},
		{ID: "P1", VendorKey: "name:acme robotics"},
		{ID: "P3", VendorKey: "uei:OTHER"},
		{ID: "P4"},
	})

	got := idx.ForVendor(model.VendorRecord{IDs: model.VendorIDs{UEI: "u1"}, Name: "ACME Robotics, Inc."})
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].ID)
	assert.Equal(t, "P2", got[1].ID)

	assert.Empty(t, idx.ForVendor(model.VendorRecord{Name: "Nobody"}))

	var nilIdx *PatentIndex
	assert.Nil(t, nilIdx.ForVendor(model.VendorRecord{Name: "Acme"}))
}

type stubClassifier struct{ label string }

func (s stubClassifier) Classify(string) (string, bool) { return s.label, s.label != "" }

func TestTechArea(t *testing.T) {
	award := &model.Award{TechArea: "Autonomy"}

	s := TechArea(award, &model.Contract{TechArea: "autonomy "}, nil, 0.05)
	assert.Equal(t, model.SignalEvidence, s.Status)
	assert.True(t, s.Aligned)
	assert.InDelta(t, 0.05, s.Contribution, 1e-9)

	s = TechArea(award, &model.Contract{TechArea: "Energy"}, nil, 0.05)
	assert.Equal(t, model.SignalEvidence, s.Status)
	assert.False(t, s.Aligned)
	assert.Zero(t, s.Contribution)

	s = TechArea(award, &model.Contract{Description: "uav swarm"}, stubClassifier{"Autonomy"}, 0.05)
	assert.True(t, s.ContractInferred)
	assert.True(t, s.Aligned)

	s = TechArea(award, &model.Contract{}, nil, 0.05)
	assert.Equal(t, model.SignalNoEvidence, s.Status)

	s = TechArea(&model.Award{}, &model.Contract{TechArea: "Autonomy"}, nil, 0.05)
	assert.Equal(t, model.SignalNoEvidence, s.Status)
	assert.Zero(t, s.Contribution)
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier([]KeywordArea{
		{Label: "Artificial Intelligence", Keywords: []string{"machine learning", "neural network"}},
		{Label: "Energy", Keywords: []string{"battery", "fuel cell", "the"}},
		{Label: "", Keywords: []string{"ignored"}},
	})

	label, ok := c.Classify("Sustainment of neural network models for machine learning pipelines")
	assert.True(t, ok)
	assert.Equal(t, "Artificial Intelligence", label)

	label, ok = c.Classify("Lithium battery packs")
	assert.True(t, ok)
	assert.Equal(t, "Energy", label)

	_, ok = c.Classify("janitorial services")
	assert.False(t, ok)

	_, ok = c.Classify("")
	assert.False(t, ok)
}

func TestLoadKeywordClassifier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "areas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
areas:
  - label: Space
    keywords: [satellite, launch vehicle]
`), 0o644))

	c, err := LoadKeywordClassifier(path)
	require.NoError(t, err)
	label, ok := c.Classify("small satellite bus")
	assert.True(t, ok)
	assert.Equal(t, "Space", label)

	require.NoError(t, os.WriteFile(path, []byte("areas: []\n"), 0o644))
	_, err = LoadKeywordClassifier(path)
	assert.ErrorContains(t, err, "defines no areas")

	_, err = LoadKeywordClassifier(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "signal: read keywords file")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity("radar signal processing", "Processing, radar SIGNAL"), 1e-9)
	assert.Zero(t, CosineSimilarity("radar", "battery"))
	assert.Zero(t, CosineSimilarity("", "battery"))
	// Stopwords and short tokens never count.
	assert.Zero(t, CosineSimilarity("the and of", "the and of"))

	a, b := "hypersonic vehicle thermal protection", "thermal protection for hypersonic glide bodies"
	assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(a, b))
	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
}

func TestText(t *testing.T) {
	s := Text("radar signal processing", "radar signal processing", 0.04)
	assert.Equal(t, model.SignalEvidence, s.Status)
	assert.InDelta(t, 0.04, s.Contribution, 1e-9)

	s = Text("", "radar", 0.04)
	assert.Equal(t, model.SignalNoEvidence, s.Status)
	assert.Zero(t, s.Contribution)
}

func TestExtract_Toggles(t *testing.T) {
	cfg := config.DefaultTransitionConfig()
	cfg.Signals = config.SignalToggles{}

	award := &model.Award{ID: "A1", Agency: "DOD", CompletionDate: ptr(day(2022, 1, 1))}
	contract := &model.Contract{ID: "C1", Agency: "DOD", StartDate: ptr(day(2022, 3, 1)), Competition: model.CompetitionSoleSource}

	s := New(cfg, nil).Extract(award, contract, Context{})
	assert.Equal(t, model.SignalDisabled, s.Patent.Status)
	assert.Equal(t, model.SignalDisabled, s.TechArea.Status)
	assert.Equal(t, model.SignalDisabled, s.Text.Status)

	cfg.Signals = config.SignalToggles{Patent: true, TechArea: true, TextSimilarity: true}
	s = New(cfg, nil).Extract(award, contract, Context{})
	assert.Equal(t, model.SignalNoEvidence, s.Patent.Status)
	assert.Equal(t, model.SignalNoEvidence, s.TechArea.Status)
	assert.Equal(t, model.SignalNoEvidence, s.Text.Status)
}

// Award completes 2022-01-01, same agency, sole-source contract starting
// 2022-03-01: 0.15 + 0.25 + 0.25 + 0.20 under the balanced preset.
func TestExtract_CoreScenario(t *testing.T) {
	e := New(config.DefaultTransitionConfig(), nil)
	award := &model.Award{ID: "A1", Agency: "DOD", CompletionDate: ptr(day(2022, 1, 1))}
	contract := &model.Contract{ID: "C1", Agency: "DOD", StartDate: ptr(day(2022, 3, 1)), Competition: model.CompetitionSoleSource}

	s := e.Extract(award, contract, Context{})
	assert.Equal(t, 59, s.Timing.DaysBetween)
	assert.True(t, s.Timing.InWindow)
	assert.InDelta(t, 0.25, s.Agency.Contribution, 1e-9)
	assert.InDelta(t, 0.25, s.Timing.Contribution, 1e-9)
	assert.InDelta(t, 0.20, s.Competition.Contribution, 1e-9)
}

func TestExtractorsTiming_MissingDates(t *testing.T) {
	e := New(config.DefaultTransitionConfig(), nil)
	award := &model.Award{ID: "A1", CompletionDate: ptr(day(2022, 1, 1))}

	s := e.Timing(award, &model.Contract{ID: "C1"})
	assert.False(t, s.InWindow)
	assert.Zero(t, s.Factor)
	assert.Zero(t, s.Contribution)
	assert.True(t, s.ContractStart.IsZero())

	s = e.Timing(&model.Award{ID: "A2"}, &model.Contract{ID: "C1", StartDate: ptr(day(2022, 3, 1))})
	assert.False(t, s.InWindow)
	assert.Zero(t, s.Contribution)
}
