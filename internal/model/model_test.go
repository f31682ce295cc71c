package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParsePhase(t *testing.T) {
	assert.Equal(t, PhaseI, ParsePhase("Phase I"))
	assert.Equal(t, PhaseII, ParsePhase("phase ii"))
	assert.Equal(t, PhaseII, ParsePhase("2"))
	assert.Equal(t, PhaseIII, ParsePhase(" III "))
	assert.Equal(t, Phase("X"), ParsePhase("x"))
}

func TestAward_EffectiveCompletion(t *testing.T) {
	a := Award{ID: "A1", CompletionDate: date(2022, 1, 1)}
	got, ok := a.EffectiveCompletion()
	require.True(t, ok)
	assert.Equal(t, *date(2022, 1, 1), got)

	inferred := Award{ID: "A2", Phase: PhaseI, AwardDate: date(2021, 3, 15)}
	got, ok = inferred.EffectiveCompletion()
	require.True(t, ok)
	assert.Equal(t, *date(2021, 9, 15), got)

	inferred.Phase = PhaseII
	got, _ = inferred.EffectiveCompletion()
	assert.Equal(t, *date(2023, 3, 15), got)

	_, ok = (&Award{ID: "A3"}).EffectiveCompletion()
	assert.False(t, ok)
}

func TestAward_Validate(t *testing.T) {
	assert.Error(t, (&Award{CompletionDate: date(2022, 1, 1)}).Validate())
	assert.Error(t, (&Award{ID: "A1"}).Validate())
	assert.NoError(t, (&Award{ID: "A1", AwardDate: date(2022, 1, 1)}).Validate())
}

func TestContract_Validate(t *testing.T) {
	assert.Error(t, (&Contract{StartDate: date(2022, 1, 1)}).Validate())
	err := (&Contract{ID: "C1"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C1")
	assert.NoError(t, (&Contract{ID: "C1", StartDate: date(2022, 1, 1)}).Validate())
}

func TestParseCompetition(t *testing.T) {
	tests := []struct {
		in   string
		want Competition
	}{
		{"C", CompetitionSoleSource},
		{"Not Competed", CompetitionSoleSource},
		{"sole source", CompetitionSoleSource},
		{"D", CompetitionLimited},
		{"Limited Competition", CompetitionLimited},
		{"A", CompetitionFullAndOpen},
		{"Full and Open Competition", CompetitionFullAndOpen},
		{"", CompetitionUnknown},
		{"???", CompetitionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCompetition(tt.in))
		})
	}
}

func TestVendorIDs_Normalized(t *testing.T) {
	ids := VendorIDs{UEI: " u1abc ", CAGE: "1ab2c", DUNS: "12-345-678"}.Normalized()
	assert.Equal(t, "U1ABC", ids.UEI)
	assert.Equal(t, "1AB2C", ids.CAGE)
	assert.Equal(t, "012345678", ids.DUNS)

	assert.Equal(t, "", VendorIDs{DUNS: "000000000"}.Normalized().DUNS)
}

func TestVendorRecord_Key(t *testing.T) {
	assert.Equal(t, "uei:U1", VendorRecord{IDs: VendorIDs{UEI: "u1", CAGE: "X"}}.Key("acme"))
	assert.Equal(t, "cage:X", VendorRecord{IDs: VendorIDs{CAGE: "x"}}.Key("acme"))
	assert.Equal(t, "duns:000000123", VendorRecord{IDs: VendorIDs{DUNS: "123"}}.Key("acme"))
	assert.Equal(t, "name:acme", VendorRecord{}.Key("acme"))
	assert.Equal(t, "", VendorRecord{}.Key(""))
}

func TestConfidenceBand_Rank(t *testing.T) {
	assert.Greater(t, BandHigh.Rank(), BandLikely.Rank())
	assert.Greater(t, BandLikely.Rank(), BandPossible.Rank())
	assert.True(t, BandHigh.Qualifies())
	assert.True(t, BandLikely.Qualifies())
	assert.False(t, BandPossible.Qualifies())
}

func TestContributions_Sum(t *testing.T) {
	c := Contributions{Base: 0.15, Agency: 0.25, Timing: 0.25, Competition: 0.2}
	assert.InDelta(t, 0.85, c.Sum(), 1e-9)
	assert.Equal(t, c.Sum(), c.Sum())
}
