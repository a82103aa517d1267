package repository

import (
	"context"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

// CanonicalReader reads the immutable canonical store.
type CanonicalReader interface {
	// AvailableDates lists the date partitions present for a table/session.
	// Order is unspecified; callers that need chronological order sort.
	AvailableDates(ctx context.Context, table string, session models.Session) ([]models.Date, error)
	// Trades returns one date's tick trades ordered by (ts_event, sequence).
	Trades(ctx context.Context, table string, session models.Session, date models.Date) ([]models.Trade, error)
	// SecondBars returns one date's 1s OHLCV bars ordered by bar_time.
	SecondBars(ctx context.Context, table string, session models.Session, date models.Date) ([]models.Bar, error)
}

// DerivedWriter publishes derived date partitions. Each call is atomic: the
// partition becomes visible all at once or not at all, and an interrupted
// write leaves the live table unchanged.
type DerivedWriter interface {
	WriteBars(ctx context.Context, table string, session models.Session, date models.Date, rows []models.Bar) error
	WriteFootprint(ctx context.Context, table string, session models.Session, date models.Date, rows []models.FootprintLevel) error
	WriteCVD(ctx context.Context, table string, session models.Session, date models.Date, rows []models.CVDRecord) error
}

// DerivedReader reads back derived partitions for the query path.
type DerivedReader interface {
	Bars(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.Bar, error)
	Footprint(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.FootprintLevel, error)
	CVD(ctx context.Context, table string, session models.Session, dates []models.Date) ([]models.CVDRecord, error)
}

// Notifier announces a successfully published partition so downstream
// consumers (chart layer, feature builders) can refresh.
type Notifier interface {
	PartitionBuilt(ctx context.Context, datasetID string, session models.Session, date models.Date, rows int64) error
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordDateBuilt(dataset string)
	RecordDateSkipped(dataset string)
	RecordBuildError(dataset string)
	RecordRowsWritten(dataset string, rows int64)
	RecordUnknownSides(dataset string, n int64)
	RecordLatency(op string, seconds float64)
}
