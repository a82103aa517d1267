package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/manifest"
	"github.com/pcashcroft/backtest/internal/resolve"
)

const querySnapshotJSON = `{
  "exported_at": "2024-03-14T00:00:00Z",
  "sheets": {
    "INSTRUMENTS": [
      {
        "instrument_id": "ES",
        "bars_dataset_id": "ds-bars",
        "cvd_dataset_id": "ds-cvd",
        "cvd_proxy_dataset_id": "ds-cvd-proxy",
        "metric_source_mode": "real_then_proxy"
      }
    ],
    "DATASETS": [
      {"dataset_id": "ds-trades", "dataset_type": "canonical_trades", "canonical_table_name": "trades"},
      {"dataset_id": "ds-ohlcv", "dataset_type": "canonical_ohlcv_1s", "canonical_table_name": "ohlcv_1s"},
      {"dataset_id": "ds-bars", "dataset_type": "derived_bars", "canonical_table_name": "bars_1m", "source_dataset_id": "ds-trades"},
      {"dataset_id": "ds-cvd", "dataset_type": "derived_trade_metrics", "metric_type": "cvd", "canonical_table_name": "cvd_1m", "source_dataset_id": "ds-trades"},
      {"dataset_id": "ds-cvd-proxy", "dataset_type": "derived_trade_metrics_proxy", "metric_type": "cvd", "canonical_table_name": "cvd_proxy_1m", "source_dataset_id": "ds-ohlcv"}
    ]
  }
}`

type fakeDerived struct {
	bars  map[string][]models.Bar
	fp    map[string][]models.FootprintLevel
	cvd   map[string][]models.CVDRecord
	reads map[string][]models.Date
}

func newFakeDerived() *fakeDerived {
	return &fakeDerived{
		bars:  make(map[string][]models.Bar),
		fp:    make(map[string][]models.FootprintLevel),
		cvd:   make(map[string][]models.CVDRecord),
		reads: make(map[string][]models.Date),
	}
}

func (f *fakeDerived) Bars(_ context.Context, table string, _ models.Session, dates []models.Date) ([]models.Bar, error) {
	f.reads[table] = append(f.reads[table], dates...)
	return f.bars[table], nil
}

func (f *fakeDerived) Footprint(_ context.Context, table string, _ models.Session, dates []models.Date) ([]models.FootprintLevel, error) {
	f.reads[table] = append(f.reads[table], dates...)
	return f.fp[table], nil
}

func (f *fakeDerived) CVD(_ context.Context, table string, _ models.Session, dates []models.Date) ([]models.CVDRecord, error) {
	f.reads[table] = append(f.reads[table], dates...)
	return f.cvd[table], nil
}

func queryFixture(t *testing.T, covered map[string][]models.Date) (*MetricsUseCase, *fakeDerived) {
	t.Helper()
	snap, err := snapshot.Parse([]byte(querySnapshotJSON))
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	tracker := manifest.NewMemory()
	for ds, dates := range covered {
		for _, d := range dates {
			e := manifest.Entry{DatasetID: ds, Date: d, Fingerprint: "f"}
			if err := tracker.Extend(context.Background(), e); err != nil {
				t.Fatalf("seed manifest: %v", err)
			}
		}
	}
	derived := newFakeDerived()
	uc := NewMetricsUseCase(snap, resolve.NewResolver(snap, tracker), derived, tracker)
	return uc, derived
}

func TestGetCVDRealThenProxy(t *testing.T) {
	uc, derived := queryFixture(t, map[string][]models.Date{
		"ds-cvd":       {"2024-03-11"},
		"ds-cvd-proxy": {"2024-03-11", "2024-03-12"},
	})
	minute := time.Date(2024, 3, 11, 14, 30, 0, 0, time.UTC)
	derived.cvd["cvd_1m"] = []models.CVDRecord{
		{BarTime: minute, Symbol: "ESH4", BuyVolume: 30, SellVolume: 20, Delta: 10, TradeCount: 3},
	}
	derived.cvd["cvd_proxy_1m"] = []models.CVDRecord{
		{BarTime: minute.AddDate(0, 0, 1), Symbol: "ESH4", BuyVolume: 8, SellVolume: 2, Delta: 6, TradeCount: 2},
	}

	res, err := uc.GetCVD(context.Background(), GetMetricsParams{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		From:         "2024-03-11",
		To:           "2024-03-13",
	})
	if err != nil {
		t.Fatalf("get cvd: %v", err)
	}

	if res.Mode != "real_then_proxy" {
		t.Errorf("mode = %q, want real_then_proxy", res.Mode)
	}
	if res.Count != 2 {
		t.Fatalf("count = %d, want 2", res.Count)
	}
	if res.Rows[0].Origin != resolve.OriginReal || res.Rows[1].Origin != resolve.OriginProxy {
		t.Errorf("origins = %s, %s; want real, proxy", res.Rows[0].Origin, res.Rows[1].Origin)
	}
	if len(res.Gaps) != 1 || res.Gaps[0] != "2024-03-13" {
		t.Errorf("gaps = %v, want [2024-03-13]", res.Gaps)
	}
	if got := derived.reads["cvd_1m"]; len(got) != 1 || got[0] != "2024-03-11" {
		t.Errorf("real table read dates = %v, want [2024-03-11]", got)
	}
	if got := derived.reads["cvd_proxy_1m"]; len(got) != 1 || got[0] != "2024-03-12" {
		t.Errorf("proxy table read dates = %v, want [2024-03-12]", got)
	}
}

func TestGetCVDModeOverride(t *testing.T) {
	uc, derived := queryFixture(t, map[string][]models.Date{
		"ds-cvd":       {"2024-03-11"},
		"ds-cvd-proxy": {"2024-03-11"},
	})

	res, err := uc.GetCVD(context.Background(), GetMetricsParams{
		InstrumentID: "ES",
		Session:      models.SessionFull,
		From:         "2024-03-11",
		To:           "2024-03-11",
		Mode:         snapshot.ProxyOnly,
	})
	if err != nil {
		t.Fatalf("get cvd: %v", err)
	}
	if res.Mode != "proxy_only" {
		t.Errorf("mode = %q, want proxy_only", res.Mode)
	}
	if len(derived.reads["cvd_1m"]) != 0 {
		t.Errorf("real table read under proxy_only: %v", derived.reads["cvd_1m"])
	}
	if got := derived.reads["cvd_proxy_1m"]; len(got) != 1 {
		t.Errorf("proxy table read dates = %v, want one date", got)
	}
}

func TestGetFootprintRejectsWrongFamily(t *testing.T) {
	uc, _ := queryFixture(t, nil)
	_, err := uc.GetFootprint(context.Background(), GetMetricsParams{
		InstrumentID: "ES",
		Family:       resolve.FamilyCVD,
		Session:      models.SessionFull,
		From:         "2024-03-11",
		To:           "2024-03-11",
	})
	if err == nil {
		t.Fatal("expected family mismatch error")
	}
}

func TestGetBarsCoverageGaps(t *testing.T) {
	uc, derived := queryFixture(t, map[string][]models.Date{
		"ds-bars": {"2024-03-11"},
	})
	derived.bars["bars_1m"] = []models.Bar{
		{BarTime: time.Date(2024, 3, 11, 14, 30, 0, 0, time.UTC), Symbol: "ESH4", Open: 1, High: 2, Low: 1, Close: 2, Volume: 10, TickCount: 4},
	}

	res, err := uc.GetBars(context.Background(), "ES", models.SessionFull, "2024-03-11", "2024-03-12")
	if err != nil {
		t.Fatalf("get bars: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("count = %d, want 1", res.Count)
	}
	if len(res.Gaps) != 1 || res.Gaps[0] != "2024-03-12" {
		t.Errorf("gaps = %v, want [2024-03-12]", res.Gaps)
	}
	if got := derived.reads["bars_1m"]; len(got) != 1 || got[0] != "2024-03-11" {
		t.Errorf("bars read dates = %v, want [2024-03-11]", got)
	}
}

func TestGetBarsRejectsReversedRange(t *testing.T) {
	uc, _ := queryFixture(t, nil)
	if _, err := uc.GetBars(context.Background(), "ES", models.SessionFull, "2024-03-12", "2024-03-11"); err == nil {
		t.Fatal("expected error for reversed range")
	}
}
