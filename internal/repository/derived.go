package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/repository"
)

const insertChunk = 2000

// ClickHouseDerived writes and reads derived date partitions. Writes are
// atomic per (session, date): rows land in a per-build staging table and are
// swapped into the live table with REPLACE PARTITION, so a reader never sees
// a half-written partition and an interrupted build leaves the live table
// unchanged. Staging tables are dropped after the swap, success or not.
type ClickHouseDerived struct {
	db *sql.DB
}

// NewClickHouseDerived creates the derived-table store.
func NewClickHouseDerived(db *sql.DB) *ClickHouseDerived {
	return &ClickHouseDerived{db: db}
}

var (
	_ repository.DerivedWriter = (*ClickHouseDerived)(nil)
	_ repository.DerivedReader = (*ClickHouseDerived)(nil)
)

// publish swaps one staged partition into the live table. insert receives the
// staging table name and writes all rows into it.
func (s *ClickHouseDerived) publish(
	ctx context.Context,
	table string,
	session models.Session,
	date models.Date,
	empty bool,
	insert func(staging string) error,
) error {
	partition := fmt.Sprintf("('%s', '%s')", session, date)

	if empty {
		// Nothing to stage; an idempotent drop clears any stale rows.
		drop := fmt.Sprintf("ALTER TABLE %s DROP PARTITION %s", table, partition)
		if _, err := s.db.ExecContext(ctx, drop); err != nil {
			return fmt.Errorf("drop partition %s %s: %w", table, partition, err)
		}
		return nil
	}

	staging := fmt.Sprintf("%s__stage_%d", table, time.Now().UnixNano())
	create := fmt.Sprintf("CREATE TABLE %s AS %s", staging, table)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create staging %s: %w", staging, err)
	}
	defer func() {
		drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", staging)
		_, _ = s.db.ExecContext(context.WithoutCancel(ctx), drop)
	}()

	if err := insert(staging); err != nil {
		return err
	}

	replace := fmt.Sprintf("ALTER TABLE %s REPLACE PARTITION %s FROM %s", table, partition, staging)
	if _, err := s.db.ExecContext(ctx, replace); err != nil {
		return fmt.Errorf("replace partition %s %s: %w", table, partition, err)
	}
	return nil
}

func (s *ClickHouseDerived) WriteBars(ctx context.Context, table string, session models.Session, date models.Date, bars []models.Bar) error {
	return s.publish(ctx, table, session, date, len(bars) == 0, func(staging string) error {
		for start := 0; start < len(bars); start += insertChunk {
			end := start + insertChunk
			if end > len(bars) {
				end = len(bars)
			}
			chunk := bars[start:end]

			values := make([]string, 0, len(chunk))
			args := make([]interface{}, 0, len(chunk)*10)
			for _, b := range chunk {
				values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
				args = append(args,
					string(session), string(date), b.BarTime, b.Symbol,
					b.Open, b.High, b.Low, b.Close, b.Volume, b.TickCount)
			}
			q := fmt.Sprintf(
				"INSERT INTO %s (session, trade_date, bar_time, symbol, open, high, low, close, volume, tick_count) VALUES %s",
				staging, strings.Join(values, ","))
			if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("insert bars: %w", err)
			}
		}
		return nil
	})
}

func (s *ClickHouseDerived) WriteFootprint(ctx context.Context, table string, session models.Session, date models.Date, levels []models.FootprintLevel) error {
	return s.publish(ctx, table, session, date, len(levels) == 0, func(staging string) error {
		for start := 0; start < len(levels); start += insertChunk {
			end := start + insertChunk
			if end > len(levels) {
				end = len(levels)
			}
			chunk := levels[start:end]

			values := make([]string, 0, len(chunk))
			args := make([]interface{}, 0, len(chunk)*8)
			for _, l := range chunk {
				values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
				args = append(args,
					string(session), string(date), l.BarTime, l.Symbol,
					l.Price, l.BuyVolume, l.SellVolume, l.TradeCount)
			}
			q := fmt.Sprintf(
				"INSERT INTO %s (session, trade_date, bar_time, symbol, price, buy_volume, sell_volume, trade_count) VALUES %s",
				staging, strings.Join(values, ","))
			if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("insert footprint: %w", err)
			}
		}
		return nil
	})
}

func (s *ClickHouseDerived) WriteCVD(ctx context.Context, table string, session models.Session, date models.Date, records []models.CVDRecord) error {
	return s.publish(ctx, table, session, date, len(records) == 0, func(staging string) error {
		for start := 0; start < len(records); start += insertChunk {
			end := start + insertChunk
			if end > len(records) {
				end = len(records)
			}
			chunk := records[start:end]

			values := make([]string, 0, len(chunk))
			args := make([]interface{}, 0, len(chunk)*8)
			for _, r := range chunk {
				values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
				args = append(args,
					string(session), string(date), r.BarTime, r.Symbol,
					r.BuyVolume, r.SellVolume, r.Delta, r.TradeCount)
			}
			q := fmt.Sprintf(
				"INSERT INTO %s (session, trade_date, bar_time, symbol, buy_volume, sell_volume, delta, trade_count) VALUES %s",
				staging, strings.Join(values, ","))
			if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("insert cvd: %w", err)
			}
		}
		return nil
	})
}

// datePlaceholders expands a date list for an IN clause.
func datePlaceholders(dates []models.Date) (string, []interface{}) {
	ph := make([]string, len(dates))
	args := make([]interface{}, len(dates))
	for i, d := range dates {
		ph[i] = "?"
		args[i] = string(d)
	}
	return strings.Join(ph, ","), args
}

func (s *ClickHouseDerived) Bars(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.Bar, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	ph, args := datePlaceholders(dates)
	q := fmt.Sprintf(`SELECT bar_time, symbol, open, high, low, close, volume, tick_count
		FROM %s
		WHERE session = ? AND trade_date IN (%s)
		ORDER BY symbol, bar_time`, table, ph)
	rows, err := s.db.QueryContext(ctx, q, append([]interface{}{string(session)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.BarTime, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TickCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ClickHouseDerived) Footprint(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.FootprintLevel, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	ph, args := datePlaceholders(dates)
	q := fmt.Sprintf(`SELECT bar_time, symbol, price, buy_volume, sell_volume, trade_count
		FROM %s
		WHERE session = ? AND trade_date IN (%s)
		ORDER BY symbol, bar_time, price`, table, ph)
	rows, err := s.db.QueryContext(ctx, q, append([]interface{}{string(session)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("read footprint %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.FootprintLevel
	for rows.Next() {
		var l models.FootprintLevel
		if err := rows.Scan(&l.BarTime, &l.Symbol, &l.Price, &l.BuyVolume, &l.SellVolume, &l.TradeCount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *ClickHouseDerived) CVD(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.CVDRecord, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	ph, args := datePlaceholders(dates)
	q := fmt.Sprintf(`SELECT bar_time, symbol, buy_volume, sell_volume, delta, trade_count
		FROM %s
		WHERE session = ? AND trade_date IN (%s)
		ORDER BY symbol, bar_time`, table, ph)
	rows, err := s.db.QueryContext(ctx, q, append([]interface{}{string(session)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("read cvd %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.CVDRecord
	for rows.Next() {
		var r models.CVDRecord
		if err := rows.Scan(&r.BarTime, &r.Symbol, &r.BuyVolume, &r.SellVolume, &r.Delta, &r.TradeCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
