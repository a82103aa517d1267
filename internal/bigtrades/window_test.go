package bigtrades

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	cases := []struct {
		name    string
		samples []int64
		pct     float64
		want    float64
	}{
		{"single sample", []int64{42}, 99, 42},
		{"median interpolates", []int64{10, 20, 30, 40}, 50, 25},
		{"p99 near max", []int64{10, 20, 30, 40}, 99, 39.7},
		{"unsorted input", []int64{40, 10, 30, 20}, 50, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := percentile(tc.samples, tc.pct)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMeanStddev(t *testing.T) {
	mean, sd := meanStddev([]int64{10, 20, 30, 40})
	if mean != 25 {
		t.Fatalf("mean = %v, want 25", mean)
	}
	want := math.Sqrt(500.0 / 3.0)
	if math.Abs(sd-want) > 1e-9 {
		t.Fatalf("stddev = %v, want %v", sd, want)
	}
}

func TestSizeWindowTrimsByCalendarDays(t *testing.T) {
	w := newSizeWindow(2)
	w.push("2024-03-10", []int64{1})
	w.push("2024-03-11", []int64{2})
	w.push("2024-03-12", []int64{3})

	// Window for 2024-03-13 covers [2024-03-11, 2024-03-13).
	w.trim("2024-03-13")
	got := w.samples()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("samples = %v, want [2 3]", got)
	}
}

func TestSizeWindowIgnoresEmptyDates(t *testing.T) {
	w := newSizeWindow(5)
	w.push("2024-03-11", nil)
	if len(w.samples()) != 0 {
		t.Fatal("empty date should contribute no samples")
	}
}
