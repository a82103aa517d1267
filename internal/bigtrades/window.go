package bigtrades

import (
	"math"
	"sort"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

// sizeWindow is a trailing per-date sample buffer for rolling threshold
// methods. Dates are pushed in chronological order; trim drops dates that
// fell out of the calendar window, bounding memory to one window of samples
// regardless of total history length.
type sizeWindow struct {
	days    int
	entries []windowEntry
}

type windowEntry struct {
	date  models.Date
	sizes []int64
}

func newSizeWindow(days int) *sizeWindow {
	return &sizeWindow{days: days}
}

// trim drops samples dated before the trailing window of the given date.
func (w *sizeWindow) trim(date models.Date) {
	cutoff := date.AddDays(-w.days)
	i := 0
	for i < len(w.entries) && w.entries[i].date.Before(cutoff) {
		i++
	}
	w.entries = w.entries[i:]
}

func (w *sizeWindow) push(date models.Date, sizes []int64) {
	if len(sizes) == 0 {
		return
	}
	w.entries = append(w.entries, windowEntry{date: date, sizes: sizes})
}

// samples flattens the buffered window.
func (w *sizeWindow) samples() []int64 {
	n := 0
	for _, e := range w.entries {
		n += len(e.sizes)
	}
	out := make([]int64, 0, n)
	for _, e := range w.entries {
		out = append(out, e.sizes...)
	}
	return out
}

// percentile computes the pct-th percentile (0 < pct < 100) with linear
// interpolation between adjacent order statistics.
func percentile(samples []int64, pct float64) float64 {
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if len(sorted) == 1 {
		return float64(sorted[0])
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac
}

// meanStddev returns the mean and sample standard deviation.
func meanStddev(samples []int64) (float64, float64) {
	n := float64(len(samples))
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / n

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / (n - 1))
}
