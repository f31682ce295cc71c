// Package store persists transition detections and the run log to
// Postgres or a local SQLite file.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/detect"
	"github.com/sells-group/transition-cli/internal/model"
)

// RunStatus is the lifecycle state of a detection run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run is one row of the run log.
type Run struct {
	ID               string            `json:"id"`
	AlgorithmVersion string            `json:"algorithm_version"`
	Preset           string            `json:"preset"`
	Status           RunStatus         `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Report           *detect.RunReport `json:"report,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// DetectionFilter narrows ListDetections. Zero values match everything.
type DetectionFilter struct {
	AlgorithmVersion string               `json:"algorithm_version,omitempty"`
	AwardID          string               `json:"award_id,omitempty"`
	VendorKey        string               `json:"vendor_key,omitempty"`
	MinBand          model.ConfidenceBand `json:"min_band,omitempty"`
	Limit            int                  `json:"limit,omitempty"`
	Offset           int                  `json:"offset,omitempty"`
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = eris.New("store: not found")

// Store persists detections and run history. Detections are keyed by
// detection ID, which embeds the algorithm version, so a newer algorithm
// adds rows beside older ones instead of overwriting them.
type Store interface {
	StartRun(ctx context.Context, algorithmVersion, preset string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, report *detect.RunReport) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	SaveDetections(ctx context.Context, runID string, detections []model.TransitionDetection) (int64, error)
	GetDetection(ctx context.Context, detectionID string) (*model.TransitionDetection, error)
	ListDetections(ctx context.Context, filter DetectionFilter) ([]model.TransitionDetection, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
	case "sqlite", "":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// bandsAtOrAbove lists the bands whose rank is at least min's.
func bandsAtOrAbove(min model.ConfidenceBand) []string {
	var out []string
	for _, b := range []model.ConfidenceBand{model.BandHigh, model.BandLikely, model.BandPossible} {
		if b.Rank() >= min.Rank() {
			out = append(out, string(b))
		}
	}
	return out
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

// detectionRow flattens a detection into the column order shared by both
// backends.
func detectionRow(runID string, d *model.TransitionDetection) ([]any, error) {
	evidence, err := json.Marshal(d.Evidence)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal evidence for %s", d.DetectionID)
	}
	patentIDs := d.PatentIDs
	if patentIDs == nil {
		patentIDs = []string{}
	}
	return []any{
		d.DetectionID, runID, d.AwardID, d.ContractID, d.VendorKey, d.TechArea,
		patentIDs, d.Score, string(d.Band), d.AlgorithmVersion, d.PatentBacked(),
		evidence, d.Evidence.DetectedAt,
	}, nil
}

var detectionColumns = []string{
	"detection_id", "run_id", "award_id", "contract_id", "vendor_key", "tech_area",
	"patent_ids", "score", "band", "algorithm_version", "patent_backed",
	"evidence", "detected_at",
}
