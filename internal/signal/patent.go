package signal

import (
	"sort"
	"time"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
)

// Shares of the patent weight earned by each patent criterion.
const (
	patentPresenceShare    = 0.5
	patentPreContractShare = 0.3
	patentTopicShare       = 0.2
)

// Patent scores patent activity between award completion and contract
// start (both inclusive). A pair with no relevant patents reports
// SignalNoEvidence and contributes zero.
func Patent(award *model.Award, completion, start time.Time, patents []model.Patent, weight, simThreshold float64) model.PatentSignal {
	s := model.PatentSignal{Status: model.SignalNoEvidence}

	var simSum float64
	for i := range patents {
		p := &patents[i]
		if p.FilingDate.Before(completion) || p.FilingDate.After(start) {
			continue
		}
		s.RelevantCount++
		if p.FilingDate.Before(start) {
			s.PreContractCount++
		}
		s.PatentIDs = append(s.PatentIDs, p.ID)
		simSum += CosineSimilarity(award.Abstract, p.Text())
	}
	if s.RelevantCount == 0 {
		return s
	}

	sort.Strings(s.PatentIDs)
	s.Status = model.SignalEvidence
	s.MeanSimilarity = simSum / float64(s.RelevantCount)

	s.Contribution = weight * patentPresenceShare
	if s.PreContractCount > 0 {
		s.Contribution += weight * patentPreContractShare
	}
	if s.MeanSimilarity >= simThreshold {
		s.Contribution += weight * patentTopicShare
	}
	return s
}

// PatentIndex groups patents by vendor key for per-award lookup. It is
// immutable once built.
type PatentIndex struct {
	byKey map[string][]model.Patent
}

// NewPatentIndex indexes patents by their VendorKey.
func NewPatentIndex(patents []model.Patent) *PatentIndex {
	idx := &PatentIndex{byKey: make(map[string][]model.Patent)}
	for _, p := range patents {
		if p.VendorKey == "" {
			continue
		}
		idx.byKey[p.VendorKey] = append(idx.byKey[p.VendorKey], p)
	}
	for k := range idx.byKey {
		ps := idx.byKey[k]
		sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	}
	return idx
}

// ForVendor returns the patents filed under any of the vendor's identifier
// keys or its normalized name, deduplicated by patent ID.
func (idx *PatentIndex) ForVendor(v model.VendorRecord) []model.Patent {
	if idx == nil {
		return nil
	}
	ids := v.IDs.Normalized()
	keys := []string{}
	if ids.UEI != "" {
		keys = append(keys, "uei:"+ids.UEI)
	}
	if ids.CAGE != "" {
		keys = append(keys, "cage:"+ids.CAGE)
	}
	if ids.DUNS != "" {
		keys = append(keys, "duns:"+ids.DUNS)
	}
	if n := resolve.NormalizeName(v.Name); n != "" {
		keys = append(keys, "name:"+n)
	}

	seen := make(map[string]bool)
	var out []model.Patent
	for _, k := range keys {
		for _, p := range idx.byKey[k] {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
