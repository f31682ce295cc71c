package resolve

import (
	"sort"

	"github.com/sells-group/transition-cli/internal/model"
)

// indexedContract pairs a contract with its pre-normalized vendor identity.
type indexedContract struct {
	contract *model.Contract
	ids      model.VendorIDs
	name     string
}

// VendorIndex is an immutable lookup of contracts by vendor identifier and
// name block. Build it once per contract chunk and share it read-only
// across workers.
type VendorIndex struct {
	entries []indexedContract
	byUEI   map[string][]int
	byCAGE  map[string][]int
	byDUNS  map[string][]int
	byBlock map[string][]int
}

// NewVendorIndex builds an index over contracts. The slice is copied so
// later mutation by the caller cannot affect readers.
func NewVendorIndex(contracts []model.Contract) *VendorIndex {
	idx := &VendorIndex{
		entries: make([]indexedContract, 0, len(contracts)),
		byUEI:   make(map[string][]int),
		byCAGE:  make(map[string][]int),
		byDUNS:  make(map[string][]int),
		byBlock: make(map[string][]int),
	}

	for i := range contracts {
		c := contracts[i]
		e := indexedContract{
			contract: &c,
			ids:      c.Vendor.Normalized(),
			name:     NormalizeName(c.VendorName),
		}
		pos := len(idx.entries)
		idx.entries = append(idx.entries, e)

		if e.ids.UEI != "" {
			idx.byUEI[e.ids.UEI] = append(idx.byUEI[e.ids.UEI], pos)
		}
		if e.ids.CAGE != "" {
			idx.byCAGE[e.ids.CAGE] = append(idx.byCAGE[e.ids.CAGE], pos)
		}
		if e.ids.DUNS != "" {
			idx.byDUNS[e.ids.DUNS] = append(idx.byDUNS[e.ids.DUNS], pos)
		}
		for _, k := range blockKeys(e.name) {
			idx.byBlock[k] = append(idx.byBlock[k], pos)
		}
	}

	return idx
}

// Len returns the number of indexed contracts.
func (idx *VendorIndex) Len() int { return len(idx.entries) }

// Candidate is a contract whose vendor resolved against an award vendor.
type Candidate struct {
	Contract *model.Contract
	Match    model.VendorMatch
}

// LookupStats counts index hits for one award.
type LookupStats struct {
	Considered int
	Resolved   int
	Unresolved int
}

// Candidates returns the contracts that share an identifier or a name token
// with the award vendor and resolve under r, ordered by contract ID.
func (idx *VendorIndex) Candidates(r *Resolver, award model.VendorRecord) ([]Candidate, LookupStats) {
	aIDs := award.IDs.Normalized()
	aName := NormalizeName(award.Name)

	seen := make(map[int]bool)
	add := func(positions []int) {
		for _, p := range positions {
			seen[p] = true
		}
	}
	if aIDs.UEI != "" {
		add(idx.byUEI[aIDs.UEI])
	}
	if aIDs.CAGE != "" {
		add(idx.byCAGE[aIDs.CAGE])
	}
	if aIDs.DUNS != "" {
		add(idx.byDUNS[aIDs.DUNS])
	}
	for _, k := range blockKeys(aName) {
		add(idx.byBlock[k])
	}

	positions := make([]int, 0, len(seen))
	for p := range seen {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		ci, cj := idx.entries[positions[i]].contract.ID, idx.entries[positions[j]].contract.ID
		if ci != cj {
			return ci < cj
		}
		return positions[i] < positions[j]
	})

	stats := LookupStats{Considered: len(positions)}
	out := make([]Candidate, 0, len(positions))
	for _, p := range positions {
		e := idx.entries[p]
		m := r.resolve(aIDs, aName, e.ids, e.name)
		if m == nil {
			stats.Unresolved++
			continue
		}
		stats.Resolved++
		out = append(out, Candidate{Contract: e.contract, Match: *m})
	}

	return out, stats
}
