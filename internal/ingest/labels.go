package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/model"
)

// ReadTechLabels reads a two-column file of record IDs and technology-area
// labels. Later rows override earlier ones for the same ID.
func ReadTechLabels(ctx context.Context, path string) (map[string]string, ReadStats, error) {
	labels := make(map[string]string)
	var stats ReadStats
	err := eachRow(ctx, path, func(r Row) error {
		stats.Rows++
		id := r.Get("record_id", "id", "award_id", "contract_id")
		label := r.Get("tech_area", "label", "technology_area")
		if id == "" || label == "" {
			stats.Skipped++
			zap.L().Debug("ingest: skipping incomplete label row", zap.Int("line", r.Line))
			return nil
		}
		stats.Parsed++
		labels[id] = label
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return labels, stats, nil
}

// LabelAwards fills TechArea on awards that lack one. It returns the
// number of awards labeled.
func LabelAwards(awards []model.Award, labels map[string]string) int {
	n := 0
	for i := range awards {
		if awards[i].TechArea != "" {
			continue
		}
		if label, ok := labels[awards[i].ID]; ok {
			awards[i].TechArea = label
			n++
		}
	}
	return n
}
