package build

import (
	"testing"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
)

func TestRealFootprintAndCVDOneMinute(t *testing.T) {
	// One minute of trades at a single price: 50 Buy, 30 Sell, 10 with a side
	// code outside the known set.
	ts := sec(t, "09:30:05")
	trades := []models.Trade{
		{TsEvent: ts, Symbol: "ESH4", Price: 100, Size: 50, SideCode: 2, Sequence: 1},
		{TsEvent: ts.Add(2 * time.Second), Symbol: "ESH4", Price: 100, Size: 30, SideCode: 1, Sequence: 2},
		{TsEvent: ts.Add(4 * time.Second), Symbol: "ESH4", Price: 100, Size: 10, SideCode: 7, Sequence: 3},
	}

	levels, unknown := RealFootprint(trades)
	if unknown != 1 {
		t.Fatalf("unknown sides = %d, want 1", unknown)
	}
	if len(levels) != 1 {
		t.Fatalf("got %d footprint levels, want 1", len(levels))
	}
	lvl := levels[0]
	if lvl.TradeCount != 3 {
		t.Errorf("trade_count = %d, want 3 (unattributed trades still counted)", lvl.TradeCount)
	}
	if lvl.BuyVolume != 50 || lvl.SellVolume != 30 {
		t.Errorf("buy/sell = %d/%d, want 50/30", lvl.BuyVolume, lvl.SellVolume)
	}

	records, unknown := RealCVD(trades, snapshot.NeutralCounted)
	if unknown != 1 {
		t.Fatalf("unknown sides = %d, want 1", unknown)
	}
	if len(records) != 1 {
		t.Fatalf("got %d cvd records, want 1", len(records))
	}
	rec := records[0]
	if rec.BuyVolume != 50 || rec.SellVolume != 30 || rec.Delta != 20 {
		t.Errorf("cvd = buy %d sell %d delta %d, want 50/30/20", rec.BuyVolume, rec.SellVolume, rec.Delta)
	}
	if rec.TradeCount != 3 {
		t.Errorf("trade_count = %d, want 3", rec.TradeCount)
	}
}

func TestRealCVDNeutralExcluded(t *testing.T) {
	ts := sec(t, "10:00:00")
	trades := []models.Trade{
		{TsEvent: ts, Symbol: "ESH4", Price: 100, Size: 40, SideCode: 2},
		{TsEvent: ts, Symbol: "ESH4", Price: 100, Size: 15, SideCode: 0},
	}

	counted, _ := RealCVD(trades, snapshot.NeutralCounted)
	if counted[0].TradeCount != 2 {
		t.Errorf("counted policy trade_count = %d, want 2", counted[0].TradeCount)
	}

	excluded, _ := RealCVD(trades, snapshot.NeutralExcluded)
	if excluded[0].TradeCount != 1 {
		t.Errorf("excluded policy trade_count = %d, want 1", excluded[0].TradeCount)
	}
	if excluded[0].BuyVolume != 40 || excluded[0].Delta != 40 {
		t.Errorf("excluded policy cvd = %+v", excluded[0])
	}
}

func TestRealBuildersExcludeSpreads(t *testing.T) {
	ts := sec(t, "10:00:00")
	trades := []models.Trade{
		{TsEvent: ts, Symbol: "ESH4", Price: 100, Size: 10, SideCode: 2},
		{TsEvent: ts, Symbol: "ESH4-ESM4", Price: 0.25, Size: 500, SideCode: 2},
	}

	levels, _ := RealFootprint(trades)
	if len(levels) != 1 || levels[0].Symbol != "ESH4" {
		t.Fatalf("footprint levels = %+v, want only the outright symbol", levels)
	}
	records, _ := RealCVD(trades, snapshot.NeutralCounted)
	if len(records) != 1 || records[0].BuyVolume != 10 {
		t.Fatalf("cvd records = %+v, want only the outright symbol", records)
	}
}

func TestRealFootprintGroupsByMinuteAndPrice(t *testing.T) {
	trades := []models.Trade{
		{TsEvent: sec(t, "09:30:10"), Symbol: "ESH4", Price: 100, Size: 5, SideCode: 2},
		{TsEvent: sec(t, "09:30:50"), Symbol: "ESH4", Price: 100, Size: 3, SideCode: 1},
		{TsEvent: sec(t, "09:30:55"), Symbol: "ESH4", Price: 100.25, Size: 2, SideCode: 2},
		{TsEvent: sec(t, "09:31:01"), Symbol: "ESH4", Price: 100, Size: 4, SideCode: 1},
	}

	levels, _ := RealFootprint(trades)
	if len(levels) != 3 {
		t.Fatalf("got %d levels, want 3", len(levels))
	}
	// Sorted by (minute, symbol, price).
	if levels[0].Price != 100 || levels[0].BuyVolume != 5 || levels[0].SellVolume != 3 {
		t.Errorf("level[0] = %+v", levels[0])
	}
	if levels[1].Price != 100.25 || levels[1].BuyVolume != 2 {
		t.Errorf("level[1] = %+v", levels[1])
	}
	if !levels[2].BarTime.Equal(sec(t, "09:31:00")) || levels[2].SellVolume != 4 {
		t.Errorf("level[2] = %+v", levels[2])
	}
}
