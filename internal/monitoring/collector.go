package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/store"
)

// Snapshot is a point-in-time view of detection-run health.
type Snapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Totals over completed runs in the window.
	Detections       int     `json:"detections"`
	Candidates       int     `json:"candidates"`
	Resolved         int     `json:"resolved"`
	EvidenceRejected int     `json:"evidence_rejected"`
	MatchRate        float64 `json:"match_rate"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LookbackHours int        `json:"lookback_hours"`
	CollectedAt   time.Time  `json:"collected_at"`
}

// RunLister abstracts the run-log query the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Collector gathers run-health snapshots from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		if snap.LastRunAt == nil || r.StartedAt.After(*snap.LastRunAt) {
			t := r.StartedAt
			snap.LastRunAt = &t
		}
		switch r.Status {
		case store.RunComplete:
			snap.RunsComplete++
			if r.Report != nil {
				snap.Detections += r.Report.Detections
				snap.Candidates += r.Report.Stats.Candidates
				snap.Resolved += r.Report.Stats.Resolved
				snap.EvidenceRejected += r.Report.Stats.EvidenceRejected
			}
		case store.RunFailed:
			snap.RunsFailed++
		case store.RunRunning:
			snap.RunsRunning++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.Candidates > 0 {
		snap.MatchRate = float64(snap.Resolved) / float64(snap.Candidates)
	}
	return snap, nil
}
