package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

func TestDiff(t *testing.T) {
	fp := Fingerprint("DS", "src", "v1")
	other := Fingerprint("DS", "src", "v2")

	requested := []models.Date{"2025-06-02", "2025-06-03", "2025-06-04"}
	covered := map[models.Date]string{
		"2025-06-02": fp,
		"2025-06-03": other,
	}

	p := Diff(requested, covered, fp, false)
	if len(p.ToBuild) != 1 || p.ToBuild[0] != "2025-06-04" {
		t.Fatalf("ToBuild = %v", p.ToBuild)
	}
	if len(p.Skipped) != 1 || p.Skipped[0] != "2025-06-02" {
		t.Fatalf("Skipped = %v", p.Skipped)
	}
	if len(p.Stale) != 1 || p.Stale[0] != "2025-06-03" {
		t.Fatalf("Stale = %v", p.Stale)
	}
}

func TestDiffForceRebuildsEverything(t *testing.T) {
	fp := Fingerprint("DS")
	requested := []models.Date{"2025-06-02", "2025-06-03"}
	covered := map[models.Date]string{"2025-06-02": fp}

	p := Diff(requested, covered, fp, true)
	if len(p.ToBuild) != 2 || len(p.Skipped) != 0 || len(p.Stale) != 0 {
		t.Fatalf("plan = %+v", p)
	}
}

func TestMemoryTrackerExtend(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e := Entry{
		DatasetID:   "ES_BARS_1M_FULL",
		Date:        "2025-06-02",
		Fingerprint: Fingerprint("ES_BARS_1M", "DB_ES_OHLCV_1S", "bars_1m", "v1"),
		RowCount:    1380,
		BuiltAt:     time.Now(),
	}
	if err := m.Extend(ctx, e); err != nil {
		t.Fatalf("extend: %v", err)
	}

	covered, err := m.CoveredDates(ctx, e.DatasetID)
	if err != nil {
		t.Fatalf("covered: %v", err)
	}
	if covered[e.Date] != e.Fingerprint {
		t.Fatalf("coverage = %v", covered)
	}
	if covered, _ := m.CoveredDates(ctx, "OTHER"); len(covered) != 0 {
		t.Fatalf("unexpected coverage for other dataset")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("ES_CVD_1M", "DB_ES_TRADES", "cvd", "v1")
	b := Fingerprint("ES_CVD_1M", "DB_ES_TRADES", "cvd", "v1")
	c := Fingerprint("ES_CVD_1M", "DB_ES_TRADES", "cvd", "v2")
	if a != b {
		t.Fatalf("fingerprint not deterministic")
	}
	if a == c {
		t.Fatalf("fingerprint ignores parameters")
	}
}
