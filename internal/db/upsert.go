package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk upsert target.
type UpsertConfig struct {
	Table        string   // schema-qualified target, e.g. "transition.detections"
	Columns      []string // columns in row order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // columns rewritten on conflict; nil means every non-key column
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, col := range c.Columns {
		if !keys[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// StagingTable returns the temp table name used for cfg.Table.
func StagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

// UpsertSQL returns the INSERT ... ON CONFLICT statement that moves rows
// from the staging table into the target.
func UpsertSQL(cfg UpsertConfig) string {
	cols := quoteAndJoin(cfg.Columns)
	update := cfg.updateColumns()

	action := "DO NOTHING"
	if len(update) > 0 {
		sets := make([]string, len(update))
		for i, col := range update {
			id := pgx.Identifier{col}.Sanitize()
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table), cols, cols,
		pgx.Identifier{StagingTable(cfg.Table)}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys), action)
}

// BulkUpsert stages rows in a temp table with COPY and merges them into
// the target in one transaction.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := UpsertTx(ctx, tx, cfg, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return n, nil
}

// UpsertTx performs the staged upsert inside an existing transaction so
// callers can merge several tables atomically.
func UpsertTx(ctx context.Context, tx pgx.Tx, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	stage := StagingTable(cfg.Table)
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create staging table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into staging table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, UpsertSQL(cfg))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	// The staging table lives until commit; drop it so a second upsert into
	// the same table within this transaction can recreate it.
	if _, err := tx.Exec(ctx, "DROP TABLE "+pgx.Identifier{stage}.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: drop staging table for %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
