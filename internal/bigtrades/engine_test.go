package bigtrades

import (
	"context"
	"testing"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/pkg/logger"
)

const engineSnapshotJSON = `{
  "exported_at": "2024-03-12T00:00:00Z",
  "sheets": {
    "INSTRUMENTS": [
      {
        "instrument_id": "ES",
        "big_trades_dataset_id": "ds-bt",
        "big_trades_proxy_dataset_id": "ds-btp"
      }
    ],
    "DATASETS": [
      {"dataset_id": "ds-trades", "dataset_type": "canonical_trades", "canonical_table_name": "trades"},
      {"dataset_id": "ds-ohlcv", "dataset_type": "canonical_ohlcv_1s", "canonical_table_name": "ohlcv_1s"},
      {"dataset_id": "ds-bt", "dataset_type": "big_trades", "canonical_table_name": "big_trades", "source_dataset_id": "ds-trades", "threshold_method": "fixed_count", "threshold_min_size": 50},
      {"dataset_id": "ds-btp", "dataset_type": "big_trades_proxy", "canonical_table_name": "big_trades_proxy", "source_dataset_id": "ds-ohlcv", "threshold_method": "fixed_count", "threshold_min_size": 5}
    ]
  }
}`

type canonKey struct {
	table string
	sess  models.Session
	date  models.Date
}

type fakeCanonical struct {
	trades  map[canonKey][]models.Trade
	seconds map[canonKey][]models.Bar
}

func newFakeCanonical() *fakeCanonical {
	return &fakeCanonical{
		trades:  make(map[canonKey][]models.Trade),
		seconds: make(map[canonKey][]models.Bar),
	}
}

func (f *fakeCanonical) AvailableDates(_ context.Context, table string, sess models.Session) ([]models.Date, error) {
	seen := make(map[models.Date]bool)
	for k := range f.trades {
		if k.table == table && k.sess == sess {
			seen[k.date] = true
		}
	}
	for k := range f.seconds {
		if k.table == table && k.sess == sess {
			seen[k.date] = true
		}
	}
	var out []models.Date
	for d := range seen {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeCanonical) Trades(_ context.Context, table string, sess models.Session, date models.Date) ([]models.Trade, error) {
	return f.trades[canonKey{table, sess, date}], nil
}

func (f *fakeCanonical) SecondBars(_ context.Context, table string, sess models.Session, date models.Date) ([]models.Bar, error) {
	return f.seconds[canonKey{table, sess, date}], nil
}

func ts(t *testing.T, date, hhmmss string) time.Time {
	t.Helper()
	v, err := time.Parse("2006-01-02 15:04:05", date+" "+hhmmss)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return v
}

func testEngine(t *testing.T, canon *fakeCanonical) *Engine {
	t.Helper()
	snap, err := snapshot.Parse([]byte(engineSnapshotJSON))
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewEngine(snap, canon, log)
}

func (f *fakeCanonical) seedTrades(t *testing.T, date models.Date, sizes []int64, codes []uint8) {
	t.Helper()
	rows := make([]models.Trade, 0, len(sizes))
	for i, sz := range sizes {
		rows = append(rows, models.Trade{
			TsEvent:  ts(t, string(date), "09:30:00").Add(time.Duration(i) * time.Second),
			Symbol:   "ESH4",
			Price:    100,
			Size:     sz,
			SideCode: codes[i],
			Sequence: uint64(i),
		})
	}
	f.trades[canonKey{"trades", models.SessionFull, date}] = rows
}

func TestFixedCountEmitsAtOrAboveMinSize(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-11", []int64{50, 30, 10}, []uint8{2, 1, 9})

	e := testEngine(t, canon)
	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-11",
		End:          "2024-03-11",
		Upstream:     UpstreamReal,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly 1", len(events))
	}
	if events[0].Size != 50 || events[0].Side != models.SideBuy {
		t.Fatalf("event = %+v, want size 50 Buy", events[0])
	}
}

func TestFixedCountMonotoneInMinSize(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-11", []int64{10, 25, 40, 55, 70}, []uint8{2, 1, 2, 1, 2})
	e := testEngine(t, canon)

	prev := -1
	for _, min := range []int64{0, 20, 40, 60, 80} {
		th := snapshot.Threshold{Method: snapshot.FixedCount, MinSize: min}
		events, err := e.Events(context.Background(), Query{
			InstrumentID: "ES",
			Session:      models.SessionFull,
			Start:        "2024-03-11",
			End:          "2024-03-11",
			Upstream:     UpstreamReal,
			Threshold:    &th,
		})
		if err != nil {
			t.Fatalf("min_size %d: %v", min, err)
		}
		if prev >= 0 && len(events) > prev {
			t.Fatalf("raising min_size to %d added events: %d -> %d", min, prev, len(events))
		}
		prev = len(events)
	}
}

func TestRollingPctUsesTrailingHistory(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-11", []int64{10, 20}, []uint8{2, 1})
	canon.seedTrades(t, "2024-03-12", []int64{30, 40}, []uint8{2, 1})
	canon.seedTrades(t, "2024-03-13", []int64{25, 100}, []uint8{2, 2})
	e := testEngine(t, canon)

	// Window over 2024-03-11..12 sizes {10,20,30,40}: the 50th percentile
	// interpolates to 25.
	th := snapshot.Threshold{Method: snapshot.RollingPct, Pct: 50, WindowDays: 5}
	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-13",
		End:          "2024-03-13",
		Upstream:     UpstreamReal,
		Threshold:    &th,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (sizes 25 and 100 at threshold 25)", len(events))
	}
}

func TestRollingPctPartialLeadingWindow(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-11", []int64{500, 600}, []uint8{2, 1})
	canon.seedTrades(t, "2024-03-12", []int64{700}, []uint8{2})
	e := testEngine(t, canon)

	th := snapshot.Threshold{Method: snapshot.RollingPct, Pct: 50, WindowDays: 5}
	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-11",
		End:          "2024-03-12",
		Upstream:     UpstreamReal,
		Threshold:    &th,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// 2024-03-11 has no trailing history so it emits nothing; 2024-03-12
	// thresholds against {500,600} (pct 50 -> 550) and emits its 700.
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 from the second date only", len(events))
	}
	if events[0].Size != 700 {
		t.Fatalf("event = %+v, want the size-700 trade", events[0])
	}
}

func TestZScoreThreshold(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-11", []int64{10, 20}, []uint8{2, 1})
	canon.seedTrades(t, "2024-03-12", []int64{30, 40}, []uint8{2, 1})
	canon.seedTrades(t, "2024-03-13", []int64{38, 30}, []uint8{2, 1})
	e := testEngine(t, canon)

	// Window {10,20,30,40}: mean 25, sample stddev ~12.91, z=1 puts the
	// threshold near 37.9.
	th := snapshot.Threshold{Method: snapshot.ZScore, Z: 1, WindowDays: 5}
	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-13",
		End:          "2024-03-13",
		Upstream:     UpstreamReal,
		Threshold:    &th,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].Size != 38 {
		t.Fatalf("events = %+v, want only the size-38 trade", events)
	}
}

func TestProxyEventsSideAndPrice(t *testing.T) {
	canon := newFakeCanonical()
	canon.seconds[canonKey{"ohlcv_1s", models.SessionFull, "2024-03-11"}] = []models.Bar{
		// Close in the upper half: buy at the high.
		{BarTime: ts(t, "2024-03-11", "09:30:00"), Symbol: "ESH4", Open: 100, High: 102, Low: 100, Close: 101.5, Volume: 10},
		// Close in the lower half: sell at the low.
		{BarTime: ts(t, "2024-03-11", "09:30:01"), Symbol: "ESH4", Open: 101, High: 101, Low: 99, Close: 99.5, Volume: 8},
		// Doji: excluded outright.
		{BarTime: ts(t, "2024-03-11", "09:30:02"), Symbol: "ESH4", Open: 100, High: 100, Low: 100, Close: 100, Volume: 50},
		// Close exactly mid-range: no directional signal, excluded.
		{BarTime: ts(t, "2024-03-11", "09:30:03"), Symbol: "ESH4", Open: 100, High: 101, Low: 100, Close: 100.5, Volume: 50},
	}
	e := testEngine(t, canon)

	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-11",
		End:          "2024-03-11",
		Upstream:     UpstreamProxy,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Buy bar: frac 0.75, volume 10, directional flow round(7.5) = 8.
	if events[0].Side != models.SideBuy || events[0].Price != 102 || events[0].Size != 8 {
		t.Errorf("buy event = %+v, want Buy size 8 at 102", events[0])
	}
	// Sell bar: frac 0.25, volume 8, directional flow round(6) = 6.
	if events[1].Side != models.SideSell || events[1].Price != 99 || events[1].Size != 6 {
		t.Errorf("sell event = %+v, want Sell size 6 at 99", events[1])
	}
}

// Proxy event sizes are the winning side's share of the bar volume, not the
// whole bar, and the same sizes feed the rolling threshold windows.
func TestProxyEventsDirectionalSize(t *testing.T) {
	seconds := []models.Bar{
		{BarTime: ts(t, "2024-03-11", "09:30:00"), Symbol: "ESH4", High: 102, Low: 100, Close: 101.5, Volume: 10},
		{BarTime: ts(t, "2024-03-11", "09:30:01"), Symbol: "ESH4", High: 104, Low: 100, Close: 103, Volume: 100},
		{BarTime: ts(t, "2024-03-11", "09:30:02"), Symbol: "ESH4", High: 104, Low: 100, Close: 101, Volume: 100},
	}
	events, sizes, err := proxyCandidates(seconds)
	if err != nil {
		t.Fatalf("proxyCandidates: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	want := []int64{8, 75, 75}
	for i, ev := range events {
		if ev.Size != want[i] {
			t.Errorf("event %d size = %d, want %d", i, ev.Size, want[i])
		}
		if sizes[i] != want[i] {
			t.Errorf("window sample %d = %d, want event size %d", i, sizes[i], want[i])
		}
	}
}

func TestEventsChronologicalAcrossDates(t *testing.T) {
	canon := newFakeCanonical()
	canon.seedTrades(t, "2024-03-12", []int64{60}, []uint8{2})
	canon.seedTrades(t, "2024-03-11", []int64{70, 80}, []uint8{1, 2})
	e := testEngine(t, canon)

	events, err := e.Events(context.Background(), Query{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		Start:        "2024-03-11",
		End:          "2024-03-12",
		Upstream:     UpstreamReal,
	})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].TsEvent.Before(events[i-1].TsEvent) {
			t.Fatalf("events out of order at %d: %v after %v", i, events[i].TsEvent, events[i-1].TsEvent)
		}
	}
}

func TestEventsRejectsMissingProxyConfig(t *testing.T) {
	snapJSON := `{
  "exported_at": "x",
  "sheets": {
    "INSTRUMENTS": [{"instrument_id": "NQ", "big_trades_dataset_id": "ds-bt"}],
    "DATASETS": [
      {"dataset_id": "ds-trades", "dataset_type": "canonical_trades", "canonical_table_name": "trades"},
      {"dataset_id": "ds-bt", "dataset_type": "big_trades", "canonical_table_name": "big_trades", "source_dataset_id": "ds-trades"}
    ]
  }
}`
	snap, err := snapshot.Parse([]byte(snapJSON))
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	e := NewEngine(snap, newFakeCanonical(), log)

	_, err = e.Events(context.Background(), Query{
		InstrumentID: "NQ",
		Session:      models.SessionFull,
		Start:        "2024-03-11",
		End:          "2024-03-11",
		Upstream:     UpstreamProxy,
	})
	if err == nil {
		t.Fatal("expected error for unconfigured proxy upstream")
	}
}
