package resolve

import (
	"strings"

	"github.com/sells-group/transition-cli/internal/model"
)

// EntityKeys groups award-side vendor records into entities. Records that
// share any normalized identifier, or that carry no identifier and share a
// normalized name, belong to the same entity. The returned map is keyed by
// award ID; the value is the entity key of the group's strongest record.
func EntityKeys(awards []model.Award) map[string]string {
	uf := newUnionFind(len(awards))
	owners := make(map[string]int)
	link := func(i int, key string) {
		if key == "" {
			return
		}
		if j, ok := owners[key]; ok {
			uf.union(i, j)
			return
		}
		owners[key] = i
	}

	norms := make([]string, len(awards))
	for i := range awards {
		ids := awards[i].Vendor.Normalized()
		norms[i] = NormalizeName(awards[i].VendorName)
		if ids.UEI != "" {
			link(i, "uei:"+ids.UEI)
		}
		if ids.CAGE != "" {
			link(i, "cage:"+ids.CAGE)
		}
		if ids.DUNS != "" {
			link(i, "duns:"+ids.DUNS)
		}
		if ids == (model.VendorIDs{}) && norms[i] != "" {
			link(i, "name:"+norms[i])
		}
	}

	// Pick a deterministic representative key per group: the lexically
	// smallest key among the strongest identifier tier present.
	best := make(map[int]string)
	for i := range awards {
		root := uf.find(i)
		key := awards[i].VendorRecord().Key(norms[i])
		if key == "" {
			continue
		}
		if cur, ok := best[root]; !ok || keyLess(key, cur) {
			best[root] = key
		}
	}

	out := make(map[string]string, len(awards))
	for i := range awards {
		key := best[uf.find(i)]
		if key == "" {
			key = "award:" + awards[i].ID
		}
		out[awards[i].ID] = key
	}
	return out
}

var tierRank = map[string]int{"uei": 0, "cage": 1, "duns": 2, "name": 3}

func keyLess(a, b string) bool {
	ta, tb := tierRank[keyTier(a)], tierRank[keyTier(b)]
	if ta != tb {
		return ta < tb
	}
	return a < b
}

func keyTier(k string) string {
	tier, _, _ := strings.Cut(k, ":")
	return tier
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
