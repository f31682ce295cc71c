package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/db"
	"github.com/sells-group/transition-cli/internal/detect"
	"github.com/sells-group/transition-cli/internal/model"
)

const detectionsTable = "transition.detections"

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// NewPostgres connects to url and returns a PostgresStore.
func NewPostgres(ctx context.Context, url string, maxConns int32) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, url, maxConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Pool exposes the underlying pool for the graph store.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, algorithmVersion, preset string) (*Run, error) {
	run := &Run{
		ID:               uuid.New().String(),
		AlgorithmVersion: algorithmVersion,
		Preset:           preset,
		Status:           RunRunning,
		StartedAt:        s.now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transition.runs (id, algorithm_version, preset, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.AlgorithmVersion, run.Preset, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, report *detect.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run report")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE transition.runs SET status = $1, completed_at = $2, report = $3 WHERE id = $4`,
		string(RunComplete), s.now().UTC(), reportJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transition.runs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`,
		string(RunFailed), s.now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, algorithm_version, preset, status, started_at, completed_at, report, error
		 FROM transition.runs ORDER BY started_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			status     string
			reportJSON []byte
			errMsg     *string
		)
		if err := rows.Scan(&r.ID, &r.AlgorithmVersion, &r.Preset, &status, &r.StartedAt, &r.CompletedAt, &reportJSON, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		if len(reportJSON) > 0 {
			r.Report = &detect.RunReport{}
			if err := json.Unmarshal(reportJSON, r.Report); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal report for run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

// SaveDetections upserts detections by detection ID through a staging table.
func (s *PostgresStore) SaveDetections(ctx context.Context, runID string, detections []model.TransitionDetection) (int64, error) {
	rows := make([][]any, 0, len(detections))
	for i := range detections {
		row, err := detectionRow(runID, &detections[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        detectionsTable,
		Columns:      detectionColumns,
		ConflictKeys: []string{"detection_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save detections")
	}
	return n, nil
}

const selectDetection = `SELECT detection_id, award_id, contract_id, vendor_key, tech_area, patent_ids,
	score, band, algorithm_version, evidence FROM transition.detections`

func (s *PostgresStore) GetDetection(ctx context.Context, detectionID string) (*model.TransitionDetection, error) {
	row := s.pool.QueryRow(ctx, selectDetection+` WHERE detection_id = $1`, detectionID)
	d, err := scanDetection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: detection %s", detectionID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get detection %s", detectionID)
	}
	return d, nil
}

func (s *PostgresStore) ListDetections(ctx context.Context, f DetectionFilter) ([]model.TransitionDetection, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.AlgorithmVersion != "" {
		add("algorithm_version = $%d", f.AlgorithmVersion)
	}
	if f.AwardID != "" {
		add("award_id = $%d", f.AwardID)
	}
	if f.VendorKey != "" {
		add("vendor_key = $%d", f.VendorKey)
	}
	if f.MinBand != "" {
		add("band = ANY($%d)", bandsAtOrAbove(f.MinBand))
	}

	q := selectDetection
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(f.Limit), f.Offset)
	q += fmt.Sprintf(" ORDER BY award_id, contract_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list detections")
	}
	defer rows.Close()

	var out []model.TransitionDetection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan detection")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate detections")
}

func scanDetection(row pgx.Row) (*model.TransitionDetection, error) {
	var (
		d        model.TransitionDetection
		band     string
		evidence []byte
	)
	if err := row.Scan(&d.DetectionID, &d.AwardID, &d.ContractID, &d.VendorKey, &d.TechArea,
		&d.PatentIDs, &d.Score, &band, &d.AlgorithmVersion, &evidence); err != nil {
		return nil, err
	}
	d.Band = model.ConfidenceBand(band)
	if len(d.PatentIDs) == 0 {
		d.PatentIDs = nil
	}
	if err := json.Unmarshal(evidence, &d.Evidence); err != nil {
		return nil, eris.Wrapf(err, "unmarshal evidence for %s", d.DetectionID)
	}
	return &d, nil
}
