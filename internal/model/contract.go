package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Competition is the extent-competed category of a federal contract.
type Competition string

const (
	CompetitionSoleSource  Competition = "sole_source"
	CompetitionLimited     Competition = "limited"
	CompetitionFullAndOpen Competition = "full_and_open"
	CompetitionUnknown     Competition = "unknown"
)

// ParseCompetition maps FPDS extent-competed codes and free-text labels
// onto a Competition category.
func ParseCompetition(s string) Competition {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "":
		return CompetitionUnknown
	// FPDS extent competed: B = not available for competition,
	// C = not competed, G = not competed under SAP.
	case "B", "C", "G", "NOT COMPETED", "SOLE SOURCE", "SOLE_SOURCE", "NOT AVAILABLE FOR COMPETITION":
		return CompetitionSoleSource
	// D = full and open after exclusion of sources, E = follow-on to competed
	// action, F = competed under SAP, CDO = competitive delivery order.
	case "D", "E", "F", "CDO", "LIMITED", "LIMITED COMPETITION", "FULL AND OPEN AFTER EXCLUSION OF SOURCES":
		return CompetitionLimited
	case "A", "FULL AND OPEN", "FULL_AND_OPEN", "FULL AND OPEN COMPETITION":
		return CompetitionFullAndOpen
	}
	switch {
	case strings.Contains(s, "SOLE"), strings.Contains(s, "NOT COMPETED"):
		return CompetitionSoleSource
	case strings.Contains(s, "LIMITED"), strings.Contains(s, "EXCLUSION"):
		return CompetitionLimited
	case strings.Contains(s, "FULL"):
		return CompetitionFullAndOpen
	}
	return CompetitionUnknown
}

// Contract is a federal procurement record.
type Contract struct {
	ID          string          `json:"contract_id"`
	ParentID    string          `json:"parent_contract_id,omitempty"`
	Vendor      VendorIDs       `json:"vendor_ids"`
	VendorName  string          `json:"vendor_name"`
	Agency      string          `json:"agency"`
	SubAgency   string          `json:"sub_agency,omitempty"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	Competition Competition     `json:"competition"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	TechArea    string          `json:"tech_area,omitempty"`
}

// VendorRecord returns the contract-side vendor identity.
func (c *Contract) VendorRecord() VendorRecord {
	return VendorRecord{IDs: c.Vendor, Name: c.VendorName}
}

// Validate reports a malformed contract: one missing its identifier or
// start date.
func (c *Contract) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return eris.New("contract: missing contract id")
	}
	if c.StartDate == nil {
		return eris.Errorf("contract %s: missing start date", c.ID)
	}
	return nil
}

// Patent is a granted or pending patent owned by a vendor.
type Patent struct {
	ID         string     `json:"patent_id"`
	VendorKey  string     `json:"vendor_key"`
	FilingDate time.Time  `json:"filing_date"`
	GrantDate  *time.Time `json:"grant_date,omitempty"`
	Title      string     `json:"title"`
	Abstract   string     `json:"abstract,omitempty"`
	Assignee   string     `json:"assignee,omitempty"`
}

// Text returns the patent text used for topic similarity.
func (p *Patent) Text() string {
	if p.Abstract == "" {
		return p.Title
	}
	return p.Title + " " + p.Abstract
}
