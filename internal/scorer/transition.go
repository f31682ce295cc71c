// Package scorer combines transition signals into a composite likelihood
// score and confidence band.
package scorer

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
)

// scorePrecision is the number of decimals kept in a composite score.
const scorePrecision = 4

// Scorer turns a signal set into a score and band. It is immutable and safe
// for concurrent use.
type Scorer struct {
	weights config.WeightConfig
	toggles config.SignalToggles
	bands   config.BandConfig
}

// New creates a Scorer from a validated transition config.
func New(cfg config.TransitionConfig) *Scorer {
	return &Scorer{weights: cfg.Weights, toggles: cfg.Signals, bands: cfg.Bands}
}

// Contributions itemizes the score. Optional signals contribute only when
// their extractor is enabled and found evidence; timing contributes only
// inside the window.
func (s *Scorer) Contributions(sig model.TransitionSignals) model.Contributions {
	c := model.Contributions{
		Base:        s.weights.Base,
		Agency:      sig.Agency.Contribution,
		Competition: sig.Competition.Contribution,
	}
	if sig.Timing.InWindow {
		c.Timing = sig.Timing.Contribution
	}
	if s.toggles.Patent && sig.Patent.Status == model.SignalEvidence {
		c.Patent = sig.Patent.Contribution
	}
	if s.toggles.TechArea && sig.TechArea.Status == model.SignalEvidence {
		c.TechArea = sig.TechArea.Contribution
	}
	if s.toggles.TextSimilarity && sig.Text.Status == model.SignalEvidence {
		c.Text = sig.Text.Contribution
	}
	return c
}

// Score returns the composite score, clamped to [0, 1] and rounded, and
// its band.
func (s *Scorer) Score(sig model.TransitionSignals) (float64, model.ConfidenceBand) {
	score := Round(s.Contributions(sig).Sum())
	return score, s.Band(score)
}

// Band classifies a score against the configured thresholds.
func (s *Scorer) Band(score float64) model.ConfidenceBand {
	switch {
	case score >= s.bands.High:
		return model.BandHigh
	case score >= s.bands.Likely:
		return model.BandLikely
	default:
		return model.BandPossible
	}
}

// Recompute re-derives the score from a stored bundle's itemized
// contributions.
func (s *Scorer) Recompute(b *model.EvidenceBundle) (float64, model.ConfidenceBand) {
	score := Round(b.Contributions.Sum())
	return score, s.Band(score)
}

// Verify reports whether a stored bundle reproduces under this scorer: the
// contributions must match the signals and the stored score and band must
// match the recomputed ones.
func (s *Scorer) Verify(b *model.EvidenceBundle) error {
	if got := s.Contributions(b.Signals); got != b.Contributions {
		return eris.Errorf("scorer: bundle %s contributions do not match signals", b.DetectionID)
	}
	score, band := s.Recompute(b)
	if score != b.Score {
		return eris.Errorf("scorer: bundle %s score %.4f, recomputed %.4f", b.DetectionID, b.Score, score)
	}
	if band != b.Band {
		return eris.Errorf("scorer: bundle %s band %s, recomputed %s", b.DetectionID, b.Band, band)
	}
	return nil
}

// Round clamps a raw score to [0, 1] and rounds it to four decimals.
func Round(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	p := math.Pow10(scorePrecision)
	return math.Round(v*p) / p
}
