package build

import (
	"sort"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
)

type levelKey struct {
	minute time.Time
	symbol string
	price  float64
}

// RealFootprint derives per-price buy/sell volume per minute from tick
// trades carrying aggressor sides. Spread symbols are excluded before
// aggregation. Neutral trades count toward trade_count but attribute volume
// to neither side. The second return value counts trades whose side code was
// outside {0,1,2}; those are classified Neutral rather than corrupting the
// buy/sell totals.
func RealFootprint(trades []models.Trade) ([]models.FootprintLevel, int64) {
	acc := make(map[levelKey]*models.FootprintLevel)
	var unknown int64

	for _, t := range trades {
		if t.IsSpread() {
			continue
		}
		side, known := models.DecodeSide(t.SideCode)
		if !known {
			unknown++
		}

		k := levelKey{minute: t.TsEvent.Truncate(time.Minute), symbol: t.Symbol, price: t.Price}
		lvl, ok := acc[k]
		if !ok {
			lvl = &models.FootprintLevel{BarTime: k.minute, Symbol: t.Symbol, Price: t.Price}
			acc[k] = lvl
		}
		switch side {
		case models.SideBuy:
			lvl.BuyVolume += t.Size
		case models.SideSell:
			lvl.SellVolume += t.Size
		}
		lvl.TradeCount++
	}

	out := make([]models.FootprintLevel, 0, len(acc))
	for _, lvl := range acc {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.BarTime.Equal(b.BarTime) {
			return a.BarTime.Before(b.BarTime)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Price < b.Price
	})
	return out, unknown
}

type cvdKey struct {
	minute time.Time
	symbol string
}

// RealCVD derives per-minute buy/sell volume and delta from tick trades.
// The neutral policy decides whether neutral-side trades are counted but
// unattributed or dropped entirely; unknown side codes are counted and
// treated per the Neutral policy.
func RealCVD(trades []models.Trade, policy snapshot.NeutralPolicy) ([]models.CVDRecord, int64) {
	acc := make(map[cvdKey]*models.CVDRecord)
	var unknown int64

	for _, t := range trades {
		if t.IsSpread() {
			continue
		}
		side, known := models.DecodeSide(t.SideCode)
		if !known {
			unknown++
		}
		if side == models.SideNeutral && policy == snapshot.NeutralExcluded {
			continue
		}

		k := cvdKey{minute: t.TsEvent.Truncate(time.Minute), symbol: t.Symbol}
		rec, ok := acc[k]
		if !ok {
			rec = &models.CVDRecord{BarTime: k.minute, Symbol: t.Symbol}
			acc[k] = rec
		}
		switch side {
		case models.SideBuy:
			rec.BuyVolume += t.Size
		case models.SideSell:
			rec.SellVolume += t.Size
		}
		rec.TradeCount++
	}

	out := make([]models.CVDRecord, 0, len(acc))
	for _, rec := range acc {
		rec.Delta = rec.BuyVolume - rec.SellVolume
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.BarTime.Equal(b.BarTime) {
			return a.BarTime.Before(b.BarTime)
		}
		return a.Symbol < b.Symbol
	})
	return out, unknown
}
