package signal

import (
	"strings"

	"github.com/sells-group/transition-cli/internal/model"
)

// Agency scores agency continuity. Same agency with the same (or an
// unreported) sub-agency earns the full weight; the same parent agency
// with a different sub-agency earns half.
func Agency(award *model.Award, contract *model.Contract, weight float64) model.AgencySignal {
	s := model.AgencySignal{
		AwardAgency:       award.Agency,
		AwardSubAgency:    award.SubAgency,
		ContractAgency:    contract.Agency,
		ContractSubAgency: contract.SubAgency,
		Level:             model.AgencyNone,
	}

	aAgency, cAgency := normCode(award.Agency), normCode(contract.Agency)
	if aAgency == "" || aAgency != cAgency {
		return s
	}

	aSub, cSub := normCode(award.SubAgency), normCode(contract.SubAgency)
	if aSub == "" || cSub == "" || aSub == cSub {
		s.Level = model.AgencySame
		s.Contribution = weight
		return s
	}

	s.Level = model.AgencyDepartment
	s.Contribution = weight * 0.5
	return s
}

func normCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
