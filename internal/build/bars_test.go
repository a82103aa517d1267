package build

import (
	"testing"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

func sec(t *testing.T, hhmmss string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", "2024-03-11 "+hhmmss)
	if err != nil {
		t.Fatalf("parse time %s: %v", hhmmss, err)
	}
	return ts
}

func TestAggregateBars(t *testing.T) {
	seconds := []models.Bar{
		{BarTime: sec(t, "09:30:02"), Symbol: "ESH4", Open: 101, High: 103, Low: 100.5, Close: 102, Volume: 7, TickCount: 3},
		{BarTime: sec(t, "09:30:00"), Symbol: "ESH4", Open: 100, High: 102, Low: 99, Close: 101, Volume: 10, TickCount: 4},
		{BarTime: sec(t, "09:31:15"), Symbol: "ESH4", Open: 102, High: 102, Low: 101, Close: 101.5, Volume: 5, TickCount: 2},
	}

	bars := AggregateBars(seconds)
	if len(bars) != 2 {
		t.Fatalf("got %d minute bars, want 2", len(bars))
	}

	first := bars[0]
	if !first.BarTime.Equal(sec(t, "09:30:00")) {
		t.Fatalf("first bar time = %v, want 09:30:00", first.BarTime)
	}
	if first.Open != 100 {
		t.Errorf("open = %v, want first second's open 100", first.Open)
	}
	if first.Close != 102 {
		t.Errorf("close = %v, want last second's close 102", first.Close)
	}
	if first.High != 103 {
		t.Errorf("high = %v, want max of second highs 103", first.High)
	}
	if first.Low != 99 {
		t.Errorf("low = %v, want min of second lows 99", first.Low)
	}
	if first.Volume != 17 {
		t.Errorf("volume = %d, want sum of second volumes 17", first.Volume)
	}
	if first.TickCount != 7 {
		t.Errorf("tick count = %d, want 7", first.TickCount)
	}

	second := bars[1]
	if !second.BarTime.Equal(sec(t, "09:31:00")) {
		t.Fatalf("second bar time = %v, want 09:31:00", second.BarTime)
	}
	if second.Volume != 5 || second.Open != 102 || second.Close != 101.5 {
		t.Errorf("second bar = %+v", second)
	}
}

func TestAggregateBarsSplitsSymbols(t *testing.T) {
	seconds := []models.Bar{
		{BarTime: sec(t, "09:30:00"), Symbol: "ESH4", Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
		{BarTime: sec(t, "09:30:01"), Symbol: "NQH4", Open: 200, High: 200, Low: 200, Close: 200, Volume: 2},
	}
	bars := AggregateBars(seconds)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want one per symbol", len(bars))
	}
	if bars[0].Symbol != "ESH4" || bars[1].Symbol != "NQH4" {
		t.Fatalf("symbols = %s, %s", bars[0].Symbol, bars[1].Symbol)
	}
}

func TestAggregateBarsEmpty(t *testing.T) {
	if got := AggregateBars(nil); len(got) != 0 {
		t.Fatalf("got %d bars from empty input", len(got))
	}
}
