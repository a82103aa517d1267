package manifest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

// ClickHouse implements Tracker over the build_manifest table. Inserts are
// append-only; the latest entry per (dataset, date) wins at read time, which
// degrades to a compare-and-append pattern if a second writer ever appears.
type ClickHouse struct {
	db    *sql.DB
	table string
}

func NewClickHouse(db *sql.DB, table string) *ClickHouse {
	return &ClickHouse{db: db, table: table}
}

// Schema returns the DDL for the manifest table, for InitSchema.
func (t *ClickHouse) Schema() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		dataset_id  String,
		build_date  Date,
		fingerprint String,
		row_count   UInt64,
		built_at    DateTime
	) ENGINE = MergeTree ORDER BY (dataset_id, build_date, built_at)`, t.table)
}

func (t *ClickHouse) CoveredDates(ctx context.Context, datasetID string) (map[models.Date]string, error) {
	q := fmt.Sprintf(
		"SELECT toString(build_date), argMax(fingerprint, built_at) FROM %s WHERE dataset_id = ? GROUP BY build_date",
		t.table)
	rows, err := t.db.QueryContext(ctx, q, datasetID)
	if err != nil {
		return nil, fmt.Errorf("manifest coverage %s: %w", datasetID, err)
	}
	defer rows.Close()

	out := make(map[models.Date]string)
	for rows.Next() {
		var date, fp string
		if err := rows.Scan(&date, &fp); err != nil {
			return nil, fmt.Errorf("manifest scan: %w", err)
		}
		d, err := models.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("manifest date: %w", err)
		}
		out[d] = fp
	}
	return out, rows.Err()
}

func (t *ClickHouse) Extend(ctx context.Context, e Entry) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (dataset_id, build_date, fingerprint, row_count, built_at) VALUES (?, ?, ?, ?, ?)",
		t.table)
	if _, err := t.db.ExecContext(ctx, q,
		e.DatasetID, string(e.Date), e.Fingerprint, uint64(e.RowCount), e.BuiltAt,
	); err != nil {
		return fmt.Errorf("manifest extend %s %s: %w", e.DatasetID, e.Date, err)
	}
	return nil
}
