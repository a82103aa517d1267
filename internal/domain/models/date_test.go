package models

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Time() != time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected time %v", d.Time())
	}
	if _, err := ParseDate("2025-13-40"); err == nil {
		t.Fatalf("expected error for invalid date")
	}
	if _, err := ParseDate("20251201"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
}

func TestDateAddDaysAcrossMonth(t *testing.T) {
	d := Date("2025-01-31")
	if got := d.AddDays(1); got != "2025-02-01" {
		t.Fatalf("AddDays(1) = %s", got)
	}
	if got := d.AddDays(-31); got != "2024-12-31" {
		t.Fatalf("AddDays(-31) = %s", got)
	}
}

func TestDateRange(t *testing.T) {
	got := DateRange("2025-02-27", "2025-03-02")
	want := []Date{"2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if DateRange("2025-03-02", "2025-02-27") != nil {
		t.Fatalf("reversed range should be nil")
	}
}

func TestDecodeSide(t *testing.T) {
	cases := []struct {
		code uint8
		side Side
		ok   bool
	}{
		{2, SideBuy, true},
		{1, SideSell, true},
		{0, SideNeutral, true},
		{7, SideNeutral, false},
	}
	for _, tc := range cases {
		side, ok := DecodeSide(tc.code)
		if side != tc.side || ok != tc.ok {
			t.Fatalf("DecodeSide(%d) = (%s, %v), want (%s, %v)", tc.code, side, ok, tc.side, tc.ok)
		}
	}
}

func TestIsSpread(t *testing.T) {
	if !(Trade{Symbol: "ESH5-ESM5"}).IsSpread() {
		t.Fatalf("calendar spread not detected")
	}
	if (Trade{Symbol: "ESH5"}).IsSpread() {
		t.Fatalf("outright flagged as spread")
	}
}
