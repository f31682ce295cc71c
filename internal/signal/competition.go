package signal

import "github.com/sells-group/transition-cli/internal/model"

// CompetitionFactor returns the weight factor for a competition type.
func CompetitionFactor(c model.Competition) float64 {
	switch c {
	case model.CompetitionSoleSource:
		return 1.0
	case model.CompetitionLimited:
		return 0.5
	default:
		return 0
	}
}

// Competition scores the contract's competition type.
func Competition(c model.Competition, weight float64) model.CompetitionSignal {
	f := CompetitionFactor(c)
	return model.CompetitionSignal{Competition: c, Factor: f, Contribution: weight * f}
}
