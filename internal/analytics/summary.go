// Package analytics aggregates detections into award-level, company-level
// and technology-area transition statistics.
package analytics

import (
	"sort"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
)

// Rate is a ratio reported with its numerator and denominator.
type Rate struct {
	Count int     `json:"count"`
	Total int     `json:"total"`
	Value float64 `json:"value"`
}

func newRate(count, total int) Rate {
	r := Rate{Count: count, Total: total}
	if total > 0 {
		r.Value = float64(count) / float64(total)
	}
	return r
}

// TechAreaStats is the transition rate restricted to one technology area.
type TechAreaStats struct {
	TechArea     string `json:"tech_area"`
	Rate         Rate   `json:"rate"`
	PatentBacked Rate   `json:"patent_backed"`
}

// BandCounts is a histogram of detections by confidence band.
type BandCounts struct {
	High     int `json:"high"`
	Likely   int `json:"likely"`
	Possible int `json:"possible"`
}

// Summary is the structured analytics report. Award and company rates are
// always reported side by side.
type Summary struct {
	AwardRate   Rate                             `json:"award_rate"`
	CompanyRate Rate                             `json:"company_rate"`
	TechAreas   []TechAreaStats                  `json:"tech_areas"`
	Companies   []model.CompanyTransitionProfile `json:"companies"`
	Bands       BandCounts                       `json:"bands"`
	Detections  int                              `json:"detections"`
}

type awardState struct {
	award        *model.Award
	entity       string
	transitioned bool
	patentBacked bool
	transitions  int
	scoreSum     float64
	detections   int
}

// Compute builds a Summary from scratch. Detections whose award is not in
// awards are ignored. Only High and Likely detections count as transitions.
// The result depends only on the inputs, never on their order.
func Compute(awards []model.Award, detections []model.TransitionDetection) Summary {
	entities := resolve.EntityKeys(awards)

	states := make(map[string]*awardState, len(awards))
	ids := make([]string, 0, len(awards))
	for i := range awards {
		a := &awards[i]
		if _, dup := states[a.ID]; dup {
			continue
		}
		states[a.ID] = &awardState{award: a, entity: entities[a.ID]}
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)

	sorted := make([]model.TransitionDetection, len(detections))
	copy(sorted, detections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DetectionID < sorted[j].DetectionID })

	var s Summary
	for i := range sorted {
		d := &sorted[i]
		st, ok := states[d.AwardID]
		if !ok {
			continue
		}
		s.Detections++
		switch d.Band {
		case model.BandHigh:
			s.Bands.High++
		case model.BandLikely:
			s.Bands.Likely++
		default:
			s.Bands.Possible++
		}

		st.detections++
		st.scoreSum += d.Score
		if !d.Band.Qualifies() {
			continue
		}
		st.transitioned = true
		st.transitions++
		if d.PatentBacked() {
			st.patentBacked = true
		}
	}

	s.AwardRate = awardRate(ids, states)
	s.Companies = profiles(ids, states)
	s.CompanyRate = companyRate(s.Companies)
	s.TechAreas = techAreas(ids, states)
	return s
}

func awardRate(ids []string, states map[string]*awardState) Rate {
	n := 0
	for _, id := range ids {
		if states[id].transitioned {
			n++
		}
	}
	return newRate(n, len(ids))
}

func companyRate(profiles []model.CompanyTransitionProfile) Rate {
	n := 0
	for _, p := range profiles {
		if p.TransitionedAwards > 0 {
			n++
		}
	}
	return newRate(n, len(profiles))
}

// profiles returns one profile per vendor entity, ordered by transitioned
// awards descending then vendor key.
func profiles(ids []string, states map[string]*awardState) []model.CompanyTransitionProfile {
	byKey := make(map[string]*model.CompanyTransitionProfile)
	scoreSums := make(map[string]float64)
	detCounts := make(map[string]int)

	for _, id := range ids {
		st := states[id]
		p, ok := byKey[st.entity]
		if !ok {
			// ids are sorted, so the name comes from the lowest award ID.
			p = &model.CompanyTransitionProfile{VendorKey: st.entity, VendorName: st.award.VendorName}
			byKey[st.entity] = p
		}
		p.TotalAwards++
		if st.transitioned {
			p.TransitionedAwards++
		}
		p.TotalTransitions += st.transitions
		scoreSums[st.entity] += st.scoreSum
		detCounts[st.entity] += st.detections
	}

	out := make([]model.CompanyTransitionProfile, 0, len(byKey))
	for key, p := range byKey {
		p.SuccessRate = float64(p.TransitionedAwards) / float64(p.TotalAwards)
		if n := detCounts[key]; n > 0 {
			p.AverageScore = scoreSums[key] / float64(n)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransitionedAwards != out[j].TransitionedAwards {
			return out[i].TransitionedAwards > out[j].TransitionedAwards
		}
		return out[i].VendorKey < out[j].VendorKey
	})
	return out
}

// techAreas reports per-area rates for labeled awards, ordered by label.
func techAreas(ids []string, states map[string]*awardState) []TechAreaStats {
	type counts struct{ total, transitioned, patent int }
	byArea := make(map[string]*counts)
	for _, id := range ids {
		st := states[id]
		area := st.award.TechArea
		if area == "" {
			continue
		}
		c, ok := byArea[area]
		if !ok {
			c = &counts{}
			byArea[area] = c
		}
		c.total++
		if st.transitioned {
			c.transitioned++
			if st.patentBacked {
				c.patent++
			}
		}
	}

	areas := make([]string, 0, len(byArea))
	for a := range byArea {
		areas = append(areas, a)
	}
	sort.Strings(areas)

	out := make([]TechAreaStats, 0, len(areas))
	for _, a := range areas {
		c := byArea[a]
		out = append(out, TechAreaStats{
			TechArea:     a,
			Rate:         newRate(c.transitioned, c.total),
			PatentBacked: newRate(c.patent, c.total),
		})
	}
	return out
}
