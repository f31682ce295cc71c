package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
)

var (
	patentIDCols       = []string{"patent_id", "patent_number", "application_number"}
	patentAssigneeCols = []string{"assignee", "assignee_name", "vendor_name"}
	patentUEICols      = []string{"uei", "assignee_uei"}
	patentCAGECols     = []string{"cage", "assignee_cage"}
	patentDUNSCols     = []string{"duns", "assignee_duns"}
	patentFilingCols   = []string{"filing_date", "application_date", "filed"}
	patentGrantCols    = []string{"grant_date", "issue_date"}
	patentTitleCols    = []string{"title", "patent_title", "invention_title"}
	patentAbstractCols = []string{"abstract", "patent_abstract"}
)

// ParsePatent builds a patent from a row. The vendor key is derived from
// the strongest assignee identifier present, falling back to the
// normalized assignee name.
func ParsePatent(r Row) (model.Patent, error) {
	p := model.Patent{
		ID:       r.Get(patentIDCols...),
		Title:    r.Get(patentTitleCols...),
		Abstract: r.Get(patentAbstractCols...),
		Assignee: r.Get(patentAssigneeCols...),
	}
	if p.ID == "" {
		return p, eris.New("patent: missing patent id")
	}

	vendor := model.VendorRecord{
		IDs: model.VendorIDs{
			UEI:  r.Get(patentUEICols...),
			CAGE: r.Get(patentCAGECols...),
			DUNS: r.Get(patentDUNSCols...),
		},
		Name: p.Assignee,
	}
	p.VendorKey = vendor.Key(resolve.NormalizeName(p.Assignee))
	if p.VendorKey == "" {
		return p, eris.Errorf("patent %s: missing assignee", p.ID)
	}

	filed, err := ParseDate(r.Get(patentFilingCols...))
	if err != nil {
		return p, eris.Wrapf(err, "patent %s: filing date", p.ID)
	}
	if filed == nil {
		return p, eris.Errorf("patent %s: missing filing date", p.ID)
	}
	p.FilingDate = *filed
	if p.GrantDate, err = ParseDate(r.Get(patentGrantCols...)); err != nil {
		return p, eris.Wrapf(err, "patent %s: grant date", p.ID)
	}
	return p, nil
}

// ReadPatents reads every patent in path. Malformed rows are logged and
// skipped.
func ReadPatents(ctx context.Context, path string) ([]model.Patent, ReadStats, error) {
	log := zap.L().With(zap.String("component", "ingest.patents"), zap.String("path", path))

	var (
		patents []model.Patent
		stats   ReadStats
	)
	err := eachRow(ctx, path, func(r Row) error {
		stats.Rows++
		p, err := ParsePatent(r)
		if err != nil {
			stats.Skipped++
			log.Warn("ingest: skipping malformed patent", zap.Int("line", r.Line), zap.Error(err))
			return nil
		}
		stats.Parsed++
		patents = append(patents, p)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return patents, stats, nil
}
