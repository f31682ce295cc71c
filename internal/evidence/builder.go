// Package evidence assembles the versioned evidence bundle attached to each
// emitted transition detection.
package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/scorer"
)

// detectionNamespace scopes detection UUIDs.
var detectionNamespace = uuid.MustParse("6f1c8e0a-52d4-4b7e-9a3f-2d8b1c7e4a90")

// ValidationError reports an incomplete or inconsistent bundle. The
// detector counts these as evidence rejections.
type ValidationError struct {
	AwardID    string
	ContractID string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("evidence: invalid bundle for award %s contract %s: %s",
		e.AwardID, e.ContractID, strings.Join(e.Problems, "; "))
}

// Builder assembles bundles. It performs no scoring.
type Builder struct {
	algorithmVersion string
	preset           string
	toggles          config.SignalToggles
	scorer           *scorer.Scorer
	now              func() time.Time
}

// NewBuilder creates a Builder. now supplies DetectedAt; nil uses the wall
// clock in UTC.
func NewBuilder(cfg config.TransitionConfig, now func() time.Time) *Builder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{
		algorithmVersion: cfg.AlgorithmVersion,
		preset:           cfg.Preset,
		toggles:          cfg.Signals,
		scorer:           scorer.New(cfg),
		now:              now,
	}
}

// DetectionID returns the deterministic identifier for a pair under an
// algorithm version.
func DetectionID(awardID, contractID, algorithmVersion string) string {
	return uuid.NewSHA1(detectionNamespace, []byte(awardID+"|"+contractID+"|"+algorithmVersion)).String()
}

// Build validates its inputs and returns the bundle with itemized
// contributions. Any failure returns a *ValidationError and no bundle.
func (b *Builder) Build(
	award *model.Award,
	contract *model.Contract,
	match *model.VendorMatch,
	signals model.TransitionSignals,
	score float64,
	band model.ConfidenceBand,
) (*model.EvidenceBundle, error) {
	var problems []string

	if award == nil || award.ID == "" {
		problems = append(problems, "award id missing")
	}
	if contract == nil || contract.ID == "" {
		problems = append(problems, "contract id missing")
	}
	if match == nil {
		problems = append(problems, "vendor match missing")
	} else if match.Method == "" || match.Confidence <= 0 || match.Confidence > 1 {
		problems = append(problems, "vendor match incomplete")
	}

	problems = append(problems, b.checkSignals(signals)...)

	if score < 0 || score > 1 {
		problems = append(problems, fmt.Sprintf("score %.4f outside [0, 1]", score))
	} else {
		if want := b.scorer.Band(score); band != want {
			problems = append(problems, fmt.Sprintf("band %q does not match score %.4f (want %q)", band, score, want))
		}
		if sum := scorer.Round(b.scorer.Contributions(signals).Sum()); sum != score {
			problems = append(problems, fmt.Sprintf("score %.4f does not match contributions %.4f", score, sum))
		}
	}

	if len(problems) > 0 {
		e := &ValidationError{Problems: problems}
		if award != nil {
			e.AwardID = award.ID
		}
		if contract != nil {
			e.ContractID = contract.ID
		}
		return nil, e
	}

	return &model.EvidenceBundle{
		SchemaVersion:    model.EvidenceSchemaVersion,
		DetectionID:      DetectionID(award.ID, contract.ID, b.algorithmVersion),
		AwardID:          award.ID,
		ContractID:       contract.ID,
		Score:            score,
		Band:             band,
		Signals:          signals,
		VendorMatch:      *match,
		Contributions:    b.scorer.Contributions(signals),
		AlgorithmVersion: b.algorithmVersion,
		Preset:           b.preset,
		DetectedAt:       b.now(),
	}, nil
}

func (b *Builder) checkSignals(s model.TransitionSignals) []string {
	var problems []string
	if s.Agency.Level == "" {
		problems = append(problems, "agency signal missing")
	}
	if s.Timing.CompletionDate.IsZero() || s.Timing.ContractStart.IsZero() {
		problems = append(problems, "timing signal missing")
	}
	if s.Competition.Competition == "" {
		problems = append(problems, "competition signal missing")
	}
	problems = append(problems, checkOptional("patent", b.toggles.Patent, s.Patent.Status)...)
	problems = append(problems, checkOptional("tech_area", b.toggles.TechArea, s.TechArea.Status)...)
	problems = append(problems, checkOptional("text", b.toggles.TextSimilarity, s.Text.Status)...)
	return problems
}

func checkOptional(name string, enabled bool, status model.SignalStatus) []string {
	switch {
	case status == "":
		return []string{name + " signal missing"}
	case enabled && status == model.SignalDisabled:
		return []string{name + " extractor enabled but reported disabled"}
	case !enabled && status != model.SignalDisabled:
		return []string{name + " extractor disabled but reported " + string(status)}
	}
	return nil
}
