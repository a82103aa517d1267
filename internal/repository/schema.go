package repository

// Schemas returns idempotent DDL for the canonical and derived tables.
// Everything is partitioned by (session, date) so a single date partition can
// be replaced atomically, and ordered for range scans by symbol and time.
func Schemas() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS trades (
			session    LowCardinality(String),
			trade_date Date,
			ts_event   DateTime64(9, 'UTC'),
			ts_recv    DateTime64(9, 'UTC'),
			symbol     LowCardinality(String),
			price      Float64,
			size       Int64,
			side       UInt8,
			sequence   UInt64,
			flags      UInt8
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, ts_event, sequence)`,

		`CREATE TABLE IF NOT EXISTS ohlcv_1s (
			session    LowCardinality(String),
			trade_date Date,
			bar_time   DateTime('UTC'),
			symbol     LowCardinality(String),
			open       Float64,
			high       Float64,
			low        Float64,
			close      Float64,
			volume     Int64,
			tick_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time)`,

		`CREATE TABLE IF NOT EXISTS bars_1m (
			session    LowCardinality(String),
			trade_date Date,
			bar_time   DateTime('UTC'),
			symbol     LowCardinality(String),
			open       Float64,
			high       Float64,
			low        Float64,
			close      Float64,
			volume     Int64,
			tick_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time)`,

		`CREATE TABLE IF NOT EXISTS footprint_1m (
			session     LowCardinality(String),
			trade_date  Date,
			bar_time    DateTime('UTC'),
			symbol      LowCardinality(String),
			price       Float64,
			buy_volume  Int64,
			sell_volume Int64,
			trade_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time, price)`,

		`CREATE TABLE IF NOT EXISTS footprint_proxy_1m (
			session     LowCardinality(String),
			trade_date  Date,
			bar_time    DateTime('UTC'),
			symbol      LowCardinality(String),
			price       Float64,
			buy_volume  Int64,
			sell_volume Int64,
			trade_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time, price)`,

		`CREATE TABLE IF NOT EXISTS cvd_1m (
			session     LowCardinality(String),
			trade_date  Date,
			bar_time    DateTime('UTC'),
			symbol      LowCardinality(String),
			buy_volume  Int64,
			sell_volume Int64,
			delta       Int64,
			trade_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time)`,

		`CREATE TABLE IF NOT EXISTS cvd_proxy_1m (
			session     LowCardinality(String),
			trade_date  Date,
			bar_time    DateTime('UTC'),
			symbol      LowCardinality(String),
			buy_volume  Int64,
			sell_volume Int64,
			delta       Int64,
			trade_count Int64
		) ENGINE = MergeTree
		PARTITION BY (session, trade_date)
		ORDER BY (symbol, bar_time)`,
	}
}
