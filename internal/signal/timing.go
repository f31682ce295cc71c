package signal

import (
	"time"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
)

// timingBands maps the completion-to-start gap onto a weight factor.
// Gaps beyond the last band score zero.
var timingBands = []struct {
	maxDays int
	factor  float64
}{
	{90, 1.0},
	{365, 0.75},
	{730, 0.5},
}

// DaysBetween returns whole calendar days from a to b, negative when b
// precedes a.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// TimingFactor returns the band factor for a gap in days.
func TimingFactor(days int) float64 {
	if days < 0 {
		return 0
	}
	for _, b := range timingBands {
		if days <= b.maxDays {
			return b.factor
		}
	}
	return 0
}

// Timing scores proximity between award completion and contract start.
// Pairs outside the window are marked InWindow=false with zero
// contribution; the detector drops them before scoring.
func Timing(completion, start time.Time, weight float64, window config.WindowConfig) model.TimingSignal {
	days := DaysBetween(completion, start)
	s := model.TimingSignal{
		CompletionDate: completion,
		ContractStart:  start,
		DaysBetween:    days,
		InWindow:       days >= window.MinDays && days <= window.MaxDays,
	}
	if !s.InWindow {
		return s
	}
	s.Factor = TimingFactor(days)
	s.Contribution = weight * s.Factor
	return s
}
