package ingest

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
)

// Column aliases accepted for contract extracts, including the USAspending
// and FPDS download names.
var (
	contractIDCols          = []string{"contract_id", "award_id_piid", "piid", "contract_award_unique_key"}
	contractParentCols      = []string{"parent_contract_id", "parent_award_id_piid", "referenced_idv_piid"}
	contractVendorNameCols  = []string{"vendor_name", "recipient_name"}
	contractUEICols         = []string{"uei", "recipient_uei", "vendor_uei"}
	contractDUNSCols        = []string{"duns", "recipient_duns", "vendor_duns"}
	contractCAGECols        = []string{"cage", "cage_code", "vendor_cage"}
	contractAgencyCols      = []string{"agency", "awarding_agency_name", "contracting_agency"}
	contractSubAgencyCols   = []string{"sub_agency", "awarding_sub_agency_name"}
	contractStartCols       = []string{"start_date", "period_of_performance_start_date", "action_date"}
	contractCompetitionCols = []string{"competition", "extent_competed_code", "extent_competed"}
	contractAmountCols      = []string{"amount", "federal_action_obligation", "obligated_amount", "total_dollars_obligated"}
	contractDescCols        = []string{"description", "award_description", "transaction_description"}
	contractTechAreaCols    = []string{"tech_area", "naics_description"}
)

// ParseContract builds a contract from a row. The result is validated.
func ParseContract(r Row) (model.Contract, error) {
	c := model.Contract{
		ID:         r.Get(contractIDCols...),
		ParentID:   r.Get(contractParentCols...),
		VendorName: r.Get(contractVendorNameCols...),
		Vendor: model.VendorIDs{
			UEI:  r.Get(contractUEICols...),
			DUNS: r.Get(contractDUNSCols...),
			CAGE: r.Get(contractCAGECols...),
		}.Normalized(),
		Agency:      r.Get(contractAgencyCols...),
		SubAgency:   r.Get(contractSubAgencyCols...),
		Competition: model.ParseCompetition(r.Get(contractCompetitionCols...)),
		Description: r.Get(contractDescCols...),
		TechArea:    r.Get(contractTechAreaCols...),
	}

	var err error
	if c.StartDate, err = ParseDate(r.Get(contractStartCols...)); err != nil {
		return c, eris.Wrapf(err, "contract %s: start date", c.ID)
	}
	if c.Amount, err = ParseAmount(r.Get(contractAmountCols...)); err != nil {
		return c, eris.Wrapf(err, "contract %s: amount", c.ID)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// ContractKey is the vendor key used to cut contract chunks.
func ContractKey(c *model.Contract) string {
	return c.VendorRecord().Key(resolve.NormalizeName(c.VendorName))
}

// ContractStream reads contracts from a file in chunks. It implements
// detect.ChunkSource. A chunk closes at the first vendor-key change after
// it reaches the chunk size, so input sorted by vendor keeps each vendor's
// contracts together. A chunk never exceeds twice the chunk size.
type ContractStream struct {
	rows      *rowStream
	chunkSize int
	labels    map[string]string
	log       *zap.Logger

	pending *model.Contract
	done    bool
	stats   ReadStats
}

// OpenContracts starts streaming contracts from path. labels, when non-nil,
// supplies technology areas by contract ID for rows without one.
func OpenContracts(ctx context.Context, path string, chunkSize int, labels map[string]string) (*ContractStream, error) {
	rows, err := openRows(ctx, path)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 250_000
	}
	return &ContractStream{
		rows:      rows,
		chunkSize: chunkSize,
		labels:    labels,
		log:       zap.L().With(zap.String("component", "ingest.contracts"), zap.String("path", path)),
	}, nil
}

// NextChunk returns the next chunk, or io.EOF once the file is exhausted.
func (s *ContractStream) NextChunk(ctx context.Context) ([]model.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done && s.pending == nil {
		return nil, io.EOF
	}

	var chunk []model.Contract
	if s.pending != nil {
		chunk = append(chunk, *s.pending)
		s.pending = nil
	}

	for !s.done {
		c, ok, err := s.read()
		if err != nil {
			return nil, err
		}
		if !ok {
			s.done = true
			break
		}
		if len(chunk) >= s.chunkSize {
			last := &chunk[len(chunk)-1]
			if ContractKey(c) != ContractKey(last) || len(chunk) >= 2*s.chunkSize {
				s.pending = c
				break
			}
		}
		chunk = append(chunk, *c)
	}

	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// read returns the next well-formed contract.
func (s *ContractStream) read() (*model.Contract, bool, error) {
	for {
		row, ok, err := s.rows.next()
		if err != nil {
			return nil, false, eris.Wrap(err, "ingest: read contracts")
		}
		if !ok {
			return nil, false, nil
		}
		s.stats.Rows++
		c, err := ParseContract(row)
		if err != nil {
			s.stats.Skipped++
			s.log.Warn("ingest: skipping malformed contract", zap.Int("line", row.Line), zap.Error(err))
			continue
		}
		if c.TechArea == "" && s.labels != nil {
			c.TechArea = s.labels[c.ID]
		}
		s.stats.Parsed++
		return &c, true, nil
	}
}

// Stats returns the row counts seen so far.
func (s *ContractStream) Stats() ReadStats { return s.stats }

// Close releases the underlying file.
func (s *ContractStream) Close() {
	s.rows.Close()
}

// ReadContracts reads every contract in path into memory.
func ReadContracts(ctx context.Context, path string) ([]model.Contract, ReadStats, error) {
	s, err := OpenContracts(ctx, path, 0, nil)
	if err != nil {
		return nil, ReadStats{}, err
	}
	defer s.Close()

	var out []model.Contract
	for {
		chunk, err := s.NextChunk(ctx)
		if err == io.EOF {
			return out, s.Stats(), nil
		}
		if err != nil {
			return nil, s.Stats(), err
		}
		out = append(out, chunk...)
	}
}
