package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var detectionsCfg = UpsertConfig{
	Table:        "transition.detections",
	Columns:      []string{"detection_id", "award_id", "score"},
	ConflictKeys: []string{"detection_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, detectionsCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "transition.detections",
		ConflictKeys: []string{"detection_id"},
	}, [][]any{{"d1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "transition.detections",
		Columns: []string{"detection_id"},
	}, [][]any{{"d1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{{"d1", "A1", 0.85}, {"d2", "A2", 0.7}}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_transition_detections"}, detectionsCfg.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec("DROP TABLE").WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, detectionsCfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_transition_detections"}, detectionsCfg.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, detectionsCfg, [][]any{{"d1", "A1", 0.85}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into staging table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("db down"))

	_, err = BulkUpsert(context.Background(), mock, detectionsCfg, [][]any{{"d1", "A1", 0.85}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestUpsertSQL(t *testing.T) {
	got := UpsertSQL(detectionsCfg)
	assert.Equal(t,
		`INSERT INTO "transition"."detections" ("detection_id", "award_id", "score") SELECT "detection_id", "award_id", "score" FROM "_stage_transition_detections" ON CONFLICT ("detection_id") DO UPDATE SET "award_id" = EXCLUDED."award_id", "score" = EXCLUDED."score"`,
		got)

	keysOnly := UpsertConfig{Table: "graph.edges", Columns: []string{"src", "dst"}, ConflictKeys: []string{"src", "dst"}}
	assert.Contains(t, UpsertSQL(keysOnly), `ON CONFLICT ("src", "dst") DO NOTHING`)
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"simple"`, sanitizeTable("simple"))
	assert.Equal(t, `"graph"."nodes"`, sanitizeTable("graph.nodes"))
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}
