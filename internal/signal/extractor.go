// Package signal computes the typed evidence signals for a candidate
// (award, contract) pair. Every extractor is a pure function of its inputs.
package signal

import (
	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
)

// Context carries the optional side inputs for one candidate pair.
type Context struct {
	// Patents owned by the award's vendor. The patent extractor applies its
	// own date filter.
	Patents []model.Patent
}

// Extractors runs all signal extractors with one configuration. It holds no
// mutable state and may be shared across goroutines.
type Extractors struct {
	weights         config.WeightConfig
	toggles         config.SignalToggles
	window          config.WindowConfig
	patentThreshold float64
	classifier      Classifier
}

// New creates Extractors from the transition configuration. classifier may
// be nil, in which case contract technology areas are never inferred.
func New(cfg config.TransitionConfig, classifier Classifier) *Extractors {
	return &Extractors{
		weights:         cfg.Weights,
		toggles:         cfg.Signals,
		window:          cfg.Window,
		patentThreshold: cfg.Patent.SimilarityThreshold,
		classifier:      classifier,
	}
}

// Timing runs only the timing extractor so callers can apply the window
// cutoff before paying for the rest. A pair missing either date is never
// in the window.
func (e *Extractors) Timing(award *model.Award, contract *model.Contract) model.TimingSignal {
	completion, ok := award.EffectiveCompletion()
	if !ok || contract.StartDate == nil {
		s := model.TimingSignal{CompletionDate: completion}
		if contract.StartDate != nil {
			s.ContractStart = *contract.StartDate
		}
		return s
	}
	return Timing(completion, *contract.StartDate, e.weights.Timing, e.window)
}

// Extract computes the full signal set for a pair.
func (e *Extractors) Extract(award *model.Award, contract *model.Contract, pctx Context) model.TransitionSignals {
	timing := e.Timing(award, contract)

	s := model.TransitionSignals{
		Agency:      Agency(award, contract, e.weights.Agency),
		Timing:      timing,
		Competition: Competition(contract.Competition, e.weights.Competition),
		Patent:      model.PatentSignal{Status: model.SignalDisabled},
		TechArea:    model.TechAreaSignal{Status: model.SignalDisabled},
		Text:        model.TextSignal{Status: model.SignalDisabled},
	}

	if e.toggles.Patent {
		s.Patent = Patent(award, timing.CompletionDate, timing.ContractStart, pctx.Patents, e.weights.Patent, e.patentThreshold)
	}
	if e.toggles.TechArea {
		s.TechArea = TechArea(award, contract, e.classifier, e.weights.TechArea)
	}
	if e.toggles.TextSimilarity {
		s.Text = Text(award.Abstract, contract.Description, e.weights.Text)
	}

	return s
}
