package build

import (
	"sort"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

type barKey struct {
	minute time.Time
	symbol string
}

// AggregateBars rolls second-resolution OHLCV up to one-minute bars for one
// (instrument, session, date) scope. Minutes with no contributing seconds
// are omitted, never zero-filled.
func AggregateBars(seconds []models.Bar) []models.Bar {
	if len(seconds) == 0 {
		return nil
	}

	sorted := make([]models.Bar, len(seconds))
	copy(sorted, seconds)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].BarTime.Equal(sorted[j].BarTime) {
			return sorted[i].BarTime.Before(sorted[j].BarTime)
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	acc := make(map[barKey]*models.Bar)
	var order []barKey
	for _, s := range sorted {
		k := barKey{minute: s.BarTime.Truncate(time.Minute), symbol: s.Symbol}
		b, ok := acc[k]
		if !ok {
			bar := models.Bar{
				BarTime: k.minute,
				Symbol:  s.Symbol,
				Open:    s.Open,
				High:    s.High,
				Low:     s.Low,
			}
			b = &bar
			acc[k] = b
			order = append(order, k)
		}
		if s.High > b.High {
			b.High = s.High
		}
		if s.Low < b.Low {
			b.Low = s.Low
		}
		b.Close = s.Close // input is time-sorted, so the last write wins
		b.Volume += s.Volume
		b.TickCount += s.TickCount
	}

	out := make([]models.Bar, 0, len(order))
	for _, k := range order {
		out = append(out, *acc[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BarTime.Equal(out[j].BarTime) {
			return out[i].BarTime.Before(out[j].BarTime)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
