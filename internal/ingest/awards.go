package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/model"
)

// Column aliases accepted for award extracts. SBIR.gov exports use the
// long-form names.
var (
	awardIDCols         = []string{"award_id", "agency_tracking_number", "contract", "award_number"}
	awardVendorNameCols = []string{"vendor_name", "company", "firm", "company_name"}
	awardUEICols        = []string{"uei", "company_uei", "vendor_uei"}
	awardDUNSCols       = []string{"duns", "company_duns", "vendor_duns"}
	awardCAGECols       = []string{"cage", "cage_code", "vendor_cage"}
	awardAgencyCols     = []string{"agency", "awarding_agency"}
	awardSubAgencyCols  = []string{"sub_agency", "branch", "awarding_sub_agency"}
	awardDateCols       = []string{"award_date", "proposal_award_date"}
	awardCompletionCols = []string{"completion_date", "contract_end_date", "end_date"}
	awardPhaseCols      = []string{"phase"}
	awardTechAreaCols   = []string{"tech_area", "topic_area"}
	awardAbstractCols   = []string{"abstract", "award_abstract", "description"}
)

// ParseAward builds an award from a row. The result is validated.
func ParseAward(r Row) (model.Award, error) {
	a := model.Award{
		ID:         r.Get(awardIDCols...),
		VendorName: r.Get(awardVendorNameCols...),
		Vendor: model.VendorIDs{
			UEI:  r.Get(awardUEICols...),
			DUNS: r.Get(awardDUNSCols...),
			CAGE: r.Get(awardCAGECols...),
		}.Normalized(),
		Agency:    r.Get(awardAgencyCols...),
		SubAgency: r.Get(awardSubAgencyCols...),
		Phase:     model.ParsePhase(r.Get(awardPhaseCols...)),
		TechArea:  r.Get(awardTechAreaCols...),
		Abstract:  r.Get(awardAbstractCols...),
	}

	var err error
	if a.AwardDate, err = ParseDate(r.Get(awardDateCols...)); err != nil {
		return a, eris.Wrapf(err, "award %s: award date", a.ID)
	}
	if a.CompletionDate, err = ParseDate(r.Get(awardCompletionCols...)); err != nil {
		return a, eris.Wrapf(err, "award %s: completion date", a.ID)
	}
	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, nil
}

// ReadAwards reads every award in path. Malformed rows are logged and
// skipped.
func ReadAwards(ctx context.Context, path string) ([]model.Award, ReadStats, error) {
	log := zap.L().With(zap.String("component", "ingest.awards"), zap.String("path", path))

	var (
		awards []model.Award
		stats  ReadStats
	)
	err := eachRow(ctx, path, func(r Row) error {
		stats.Rows++
		a, err := ParseAward(r)
		if err != nil {
			stats.Skipped++
			log.Warn("ingest: skipping malformed award", zap.Int("line", r.Line), zap.Error(err))
			return nil
		}
		stats.Parsed++
		awards = append(awards, a)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	log.Info("ingest: awards read", zap.Int("parsed", stats.Parsed), zap.Int("skipped", stats.Skipped))
	return awards, stats, nil
}
