package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transition-cli/internal/model"
)

func contract(id, uei, cage, duns, name string) model.Contract {
	return model.Contract{
		ID:         id,
		Vendor:     model.VendorIDs{UEI: uei, CAGE: cage, DUNS: duns},
		VendorName: name,
	}
}

func TestVendorIndex_Candidates(t *testing.T) {
	idx := NewVendorIndex([]model.Contract{
		contract("C3", "U1", "", "", "Acme Robotics"),
		contract("C1", "", "K1", "", "Something Else"),
		contract("C2", "", "", "", "Acme Robotic Inc"),
		contract("C4", "", "", "", "Acme Foods"),
		contract("C5", "U9", "", "", "Zeta Labs"),
	})
	require.Equal(t, 5, idx.Len())

	award := model.VendorRecord{IDs: model.VendorIDs{UEI: "u1", CAGE: "k1"}, Name: "Acme Robotics LLC"}
	cands, stats := idx.Candidates(NewResolver(0.9), award)

	// C3 via UEI, C1 via CAGE, C2 via fuzzy name; C4 shares the block but
	// fails the threshold; C5 is never considered.
	require.Len(t, cands, 3)
	assert.Equal(t, "C1", cands[0].Contract.ID)
	assert.Equal(t, model.MatchCAGE, cands[0].Match.Method)
	assert.Equal(t, "C2", cands[1].Contract.ID)
	assert.Equal(t, model.MatchFuzzyName, cands[1].Match.Method)
	assert.Equal(t, "C3", cands[2].Contract.ID)
	assert.Equal(t, model.MatchUEI, cands[2].Match.Method)

	assert.Equal(t, 4, stats.Considered)
	assert.Equal(t, 3, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)
}

func TestVendorIndex_NoIdentity(t *testing.T) {
	idx := NewVendorIndex([]model.Contract{contract("C1", "U1", "", "", "Acme")})
	cands, stats := idx.Candidates(NewResolver(0.9), model.VendorRecord{})
	assert.Empty(t, cands)
	assert.Equal(t, 0, stats.Considered)
}

func TestVendorIndex_CopiesInput(t *testing.T) {
	in := []model.Contract{contract("C1", "U1", "", "", "Acme")}
	idx := NewVendorIndex(in)
	in[0].ID = "mutated"

	cands, _ := idx.Candidates(NewResolver(0.9), model.VendorRecord{IDs: model.VendorIDs{UEI: "U1"}})
	require.Len(t, cands, 1)
	assert.Equal(t, "C1", cands[0].Contract.ID)
}

func TestVendorIndex_DeterministicOrder(t *testing.T) {
	idx := NewVendorIndex([]model.Contract{
		contract("B", "U1", "", "", ""),
		contract("A", "U1", "", "", ""),
		contract("C", "U1", "", "", ""),
	})
	award := model.VendorRecord{IDs: model.VendorIDs{UEI: "U1"}}
	for i := 0; i < 3; i++ {
		cands, _ := idx.Candidates(NewResolver(0.9), award)
		require.Len(t, cands, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{cands[0].Contract.ID, cands[1].Contract.ID, cands[2].Contract.ID})
	}
}

func TestVendorIndex_NameOnlyReorderedAndTypo(t *testing.T) {
	idx := NewVendorIndex([]model.Contract{
		contract("C1", "", "", "", "Acme Robotics LLC"),
		contract("C2", "", "", "", "Acne Robotics"),
		contract("C3", "", "", "", "Zeta Labs"),
	})

	cands, stats := idx.Candidates(NewResolver(0.9), model.VendorRecord{Name: "Robotics Acme Inc"})
	require.Len(t, cands, 2)
	assert.Equal(t, "C1", cands[0].Contract.ID)
	assert.Equal(t, model.MatchFuzzyName, cands[0].Match.Method)
	assert.InDelta(t, 1.0, cands[0].Match.Confidence, 1e-9)
	assert.Equal(t, "C2", cands[1].Contract.ID)
	assert.Equal(t, 2, stats.Considered)
}
