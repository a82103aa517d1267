package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/repository"
)

// ClickHouseCanonical reads the immutable canonical store.
type ClickHouseCanonical struct {
	db *sql.DB
}

// NewClickHouseCanonical creates a canonical-store reader.
func NewClickHouseCanonical(db *sql.DB) repository.CanonicalReader {
	return &ClickHouseCanonical{db: db}
}

func (c *ClickHouseCanonical) AvailableDates(ctx context.Context, table string, session models.Session) ([]models.Date, error) {
	q := fmt.Sprintf(
		"SELECT DISTINCT toString(trade_date) FROM %s WHERE session = ? ORDER BY trade_date", table)
	rows, err := c.db.QueryContext(ctx, q, string(session))
	if err != nil {
		return nil, fmt.Errorf("available dates %s: %w", table, err)
	}
	defer rows.Close()

	var dates []models.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (c *ClickHouseCanonical) Trades(ctx context.Context, table string, session models.Session, date models.Date) ([]models.Trade, error) {
	q := fmt.Sprintf(`SELECT ts_event, ts_recv, symbol, price, size, side, sequence, flags
		FROM %s
		WHERE session = ? AND trade_date = ?
		ORDER BY ts_event, sequence`, table)
	rows, err := c.db.QueryContext(ctx, q, string(session), string(date))
	if err != nil {
		return nil, fmt.Errorf("read trades %s %s: %w", table, date, err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.TsEvent, &t.TsRecv, &t.Symbol, &t.Price, &t.Size, &t.SideCode, &t.Sequence, &t.Flags); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *ClickHouseCanonical) SecondBars(ctx context.Context, table string, session models.Session, date models.Date) ([]models.Bar, error) {
	q := fmt.Sprintf(`SELECT bar_time, symbol, open, high, low, close, volume, tick_count
		FROM %s
		WHERE session = ? AND trade_date = ?
		ORDER BY symbol, bar_time`, table)
	rows, err := c.db.QueryContext(ctx, q, string(session), string(date))
	if err != nil {
		return nil, fmt.Errorf("read second bars %s %s: %w", table, date, err)
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
