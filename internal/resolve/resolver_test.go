package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transition-cli/internal/model"
)

func vendor(uei, cage, duns, name string) model.VendorRecord {
	return model.VendorRecord{IDs: model.VendorIDs{UEI: uei, CAGE: cage, DUNS: duns}, Name: name}
}

func TestNameSimilarity_Fixtures(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Acme Robotics LLC", "ACME ROBOTICS, INC.", 1.0},
		{"Robotics Acme", "Acme Robotics", 1.0},
		{"Acme Robotics", "Acme Robotic", 12.0 / 13.0},
		{"Acme Robotics", "Apex Robotics", 11.0 / 13.0},
		{"", "Acme", 0},
		{"Inc", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, NameSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestNameSimilarity_Symmetric(t *testing.T) {
	assert.InDelta(t, NameSimilarity("Acme Robotic", "Acme Robotics"), NameSimilarity("Acme Robotics", "Acme Robotic"), 1e-12)
}

func TestNewResolver_DefaultThreshold(t *testing.T) {
	assert.InDelta(t, DefaultFuzzyThreshold, NewResolver(0).FuzzyThreshold(), 1e-12)
	assert.InDelta(t, 0.8, NewResolver(0.8).FuzzyThreshold(), 1e-12)
}

func TestResolve_UEI(t *testing.T) {
	m := NewResolver(0.9).Resolve(vendor("u1", "", "", "Acme"), vendor("U1 ", "", "", "Other"))
	require.NotNil(t, m)
	assert.Equal(t, model.MatchUEI, m.Method)
	assert.InDelta(t, 0.99, m.Confidence, 1e-12)
	assert.Equal(t, "U1", m.MatchedValue)
}

func TestResolve_PrimaryWinsOverSecondary(t *testing.T) {
	award := vendor("U1", "CAGE9", "", "Acme")
	contract := vendor("U1", "CAGE9", "", "Acme")
	m := NewResolver(0.9).Resolve(award, contract)
	require.NotNil(t, m)
	assert.Equal(t, model.MatchUEI, m.Method)
	assert.InDelta(t, ConfidenceUEI, m.Confidence, 1e-12)
	assert.Equal(t, "U1", m.MatchedValue)
}

func TestResolve_FallsThroughMismatchedPrimary(t *testing.T) {
	m := NewResolver(0.9).Resolve(vendor("U1", "C1", "", ""), vendor("U2", "C1", "", ""))
	require.NotNil(t, m)
	assert.Equal(t, model.MatchCAGE, m.Method)
	assert.InDelta(t, ConfidenceCAGE, m.Confidence, 1e-12)
}

func TestResolve_DUNS(t *testing.T) {
	m := NewResolver(0.9).Resolve(vendor("", "", "12345678", ""), vendor("", "", "012-345-678", ""))
	require.NotNil(t, m)
	assert.Equal(t, model.MatchDUNS, m.Method)
	assert.InDelta(t, ConfidenceDUNS, m.Confidence, 1e-12)
	assert.Equal(t, "012345678", m.MatchedValue)
}

func TestResolve_FuzzyName(t *testing.T) {
	m := NewResolver(0.9).Resolve(vendor("", "", "", "Acme Robotics LLC"), vendor("", "", "", "ACME ROBOTIC INC"))
	require.NotNil(t, m)
	assert.Equal(t, model.MatchFuzzyName, m.Method)
	assert.InDelta(t, 12.0/13.0, m.Confidence, 0.001)
	assert.Equal(t, "acme robotic", m.MatchedValue)
}

func TestResolve_FuzzyBelowThreshold(t *testing.T) {
	assert.Nil(t, NewResolver(0.9).Resolve(vendor("", "", "", "Acme Robotics"), vendor("", "", "", "Apex Robotics")))
	// Same pair clears a looser threshold.
	assert.NotNil(t, NewResolver(0.8).Resolve(vendor("", "", "", "Acme Robotics"), vendor("", "", "", "Apex Robotics")))
}

func TestResolve_NoMatch(t *testing.T) {
	assert.Nil(t, NewResolver(0.9).Resolve(vendor("", "", "", ""), vendor("", "", "", "")))
	assert.Nil(t, NewResolver(0.9).Resolve(vendor("U1", "", "", ""), vendor("U2", "", "", "")))
}

func TestResolve_Pure(t *testing.T) {
	r := NewResolver(0.9)
	a := vendor("", "", "", "Acme Robotics")
	c := vendor("", "", "", "Acme Robotic")
	first := r.Resolve(a, c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Resolve(a, c))
	}
}
