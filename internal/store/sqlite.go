package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/transition-cli/internal/detect"
	"github.com/sells-group/transition-cli/internal/model"
)

// SQLiteStore implements Store on a local modernc.org/sqlite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path in WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, eris.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	algorithm_version TEXT NOT NULL,
	preset            TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'running',
	started_at        DATETIME NOT NULL,
	completed_at      DATETIME,
	report            TEXT,
	error             TEXT
);

CREATE TABLE IF NOT EXISTS detections (
	detection_id      TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL,
	award_id          TEXT NOT NULL,
	contract_id       TEXT NOT NULL,
	vendor_key        TEXT NOT NULL DEFAULT '',
	tech_area         TEXT NOT NULL DEFAULT '',
	patent_ids        TEXT NOT NULL DEFAULT '[]',
	score             REAL NOT NULL CHECK (score >= 0 AND score <= 1),
	band              TEXT NOT NULL,
	algorithm_version TEXT NOT NULL,
	patent_backed     INTEGER NOT NULL DEFAULT 0,
	evidence          TEXT NOT NULL,
	detected_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_detections_award ON detections(award_id);
CREATE INDEX IF NOT EXISTS idx_detections_version_band ON detections(algorithm_version, band);
CREATE INDEX IF NOT EXISTS idx_detections_vendor ON detections(vendor_key);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, algorithmVersion, preset string) (*Run, error) {
	run := &Run{
		ID:               uuid.New().String(),
		AlgorithmVersion: algorithmVersion,
		Preset:           preset,
		Status:           RunRunning,
		StartedAt:        s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, algorithm_version, preset, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.AlgorithmVersion, run.Preset, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, report *detect.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run report")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, report = ? WHERE id = ?`,
		string(RunComplete), s.now().UTC(), string(reportJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(RunFailed), s.now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, algorithm_version, preset, status, started_at, completed_at, report, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			status      string
			completedAt sql.NullTime
			report      sql.NullString
			errMsg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.AlgorithmVersion, &r.Preset, &status, &r.StartedAt, &completedAt, &report, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = RunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		r.Error = errMsg.String
		if report.Valid && report.String != "" {
			r.Report = &detect.RunReport{}
			if err := json.Unmarshal([]byte(report.String), r.Report); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal report for run %s", r.ID)
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// SaveDetections upserts detections by detection ID in one transaction.
func (s *SQLiteStore) SaveDetections(ctx context.Context, runID string, detections []model.TransitionDetection) (int64, error) {
	if len(detections) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(detectionColumns)), ", ")
	var updates []string
	for _, c := range detectionColumns[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO detections ("+strings.Join(detectionColumns, ", ")+") VALUES ("+placeholders+
			") ON CONFLICT(detection_id) DO UPDATE SET "+strings.Join(updates, ", "))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare detection upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i := range detections {
		row, err := detectionRow(runID, &detections[i])
		if err != nil {
			return 0, err
		}
		patentJSON, err := json.Marshal(row[6])
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal patent ids")
		}
		row[6] = string(patentJSON)
		row[11] = string(row[11].([]byte))
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert detection %s", detections[i].DetectionID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit detections")
	}
	return n, nil
}

const sqliteSelectDetection = `SELECT detection_id, award_id, contract_id, vendor_key, tech_area, patent_ids,
	score, band, algorithm_version, evidence FROM detections`

func (s *SQLiteStore) GetDetection(ctx context.Context, detectionID string) (*model.TransitionDetection, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectDetection+` WHERE detection_id = ?`, detectionID)
	d, err := scanSQLiteDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: detection %s", detectionID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get detection %s", detectionID)
	}
	return d, nil
}

func (s *SQLiteStore) ListDetections(ctx context.Context, f DetectionFilter) ([]model.TransitionDetection, error) {
	q := sqliteSelectDetection + ` WHERE 1=1`
	var args []any
	if f.AlgorithmVersion != "" {
		q += ` AND algorithm_version = ?`
		args = append(args, f.AlgorithmVersion)
	}
	if f.AwardID != "" {
		q += ` AND award_id = ?`
		args = append(args, f.AwardID)
	}
	if f.VendorKey != "" {
		q += ` AND vendor_key = ?`
		args = append(args, f.VendorKey)
	}
	if f.MinBand != "" {
		bands := bandsAtOrAbove(f.MinBand)
		q += ` AND band IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(bands)), ", ") + `)`
		for _, b := range bands {
			args = append(args, b)
		}
	}
	q += ` ORDER BY award_id, contract_id LIMIT ? OFFSET ?`
	args = append(args, listLimit(f.Limit), f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list detections")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.TransitionDetection
	for rows.Next() {
		d, err := scanSQLiteDetection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan detection")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate detections")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteDetection(row scannable) (*model.TransitionDetection, error) {
	var (
		d          model.TransitionDetection
		band       string
		patentJSON string
		evidence   string
	)
	if err := row.Scan(&d.DetectionID, &d.AwardID, &d.ContractID, &d.VendorKey, &d.TechArea,
		&patentJSON, &d.Score, &band, &d.AlgorithmVersion, &evidence); err != nil {
		return nil, err
	}
	d.Band = model.ConfidenceBand(band)
	if err := json.Unmarshal([]byte(patentJSON), &d.PatentIDs); err != nil {
		return nil, eris.Wrapf(err, "unmarshal patent ids for %s", d.DetectionID)
	}
	if len(d.PatentIDs) == 0 {
		d.PatentIDs = nil
	}
	if err := json.Unmarshal([]byte(evidence), &d.Evidence); err != nil {
		return nil, eris.Wrapf(err, "unmarshal evidence for %s", d.DetectionID)
	}
	return &d, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
