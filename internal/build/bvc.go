package build

import (
	"math"
	"sort"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
)

// BuyFraction estimates the buy share of a bar's volume from where the close
// sits within the high-low range (bulk volume classification). Doji bars have
// no intrabar range, so the split defaults to 0.5.
func BuyFraction(b models.Bar) float64 {
	if b.IsDoji() {
		return 0.5
	}
	return (b.Close - b.Low) / (b.High - b.Low)
}

// FootprintCell is one exact (minute, price) attribution from the BVC
// estimator. Volumes stay fractional until quantized at the persistence
// boundary. Seconds is the number of contributing second-bars, a
// liquidity-density proxy rather than a true trade count.
type FootprintCell struct {
	BarTime time.Time
	Symbol  string
	Price   float64
	Buy     float64
	Sell    float64
	Seconds int64
}

// CVDRow is one exact per-minute BVC attribution.
type CVDRow struct {
	BarTime time.Time
	Symbol  string
	Buy     float64
	Sell    float64
	Seconds int64
}

// ProxyFootprint estimates footprint levels from second OHLCV. Non-doji bars
// attribute buy volume at the bar high and sell volume at the bar low; doji
// bars put a 50/50 split at the close. Zero-volume bars contribute nothing.
func ProxyFootprint(seconds []models.Bar) []FootprintCell {
	acc := make(map[levelKey]*FootprintCell)
	add := func(minute time.Time, symbol string, price, buy, sell float64) {
		k := levelKey{minute: minute, symbol: symbol, price: price}
		c, ok := acc[k]
		if !ok {
			c = &FootprintCell{BarTime: minute, Symbol: symbol, Price: price}
			acc[k] = c
		}
		c.Buy += buy
		c.Sell += sell
		c.Seconds++
	}

	for _, s := range seconds {
		if s.Volume <= 0 {
			continue
		}
		minute := s.BarTime.Truncate(time.Minute)
		frac := BuyFraction(s)
		vol := float64(s.Volume)

		if s.IsDoji() {
			add(minute, s.Symbol, s.Close, vol/2, vol/2)
			continue
		}
		add(minute, s.Symbol, s.High, vol*frac, 0)
		add(minute, s.Symbol, s.Low, 0, vol*(1-frac))
	}

	out := make([]FootprintCell, 0, len(acc))
	for _, c := range acc {
		out = append(out, *c)
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
	return out
}

// ProxyCVD estimates per-minute buy/sell volume from second OHLCV, collapsing
// price. buy + sell equals the summed bar volume exactly.
func ProxyCVD(seconds []models.Bar) []CVDRow {
	acc := make(map[cvdKey]*CVDRow)

	for _, s := range seconds {
		if s.Volume <= 0 {
			continue
		}
		k := cvdKey{minute: s.BarTime.Truncate(time.Minute), symbol: s.Symbol}
		r, ok := acc[k]
		if !ok {
			r = &CVDRow{BarTime: k.minute, Symbol: s.Symbol}
			acc[k] = r
		}
		frac := BuyFraction(s)
		vol := float64(s.Volume)
		r.Buy += vol * frac
		r.Sell += vol * (1 - frac)
		r.Seconds++
	}

	out := make([]CVDRow, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.BarTime.Equal(b.BarTime) {
			return a.BarTime.Before(b.BarTime)
		}
		return a.Symbol < b.Symbol
	})
	return out
}

// QuantizeFootprint converts exact BVC cells to the integer-typed persisted
// schema. Policy: buy rounds half-to-even; sell = round(cell total) - buy, so
// buy + sell always equals the rounded cell total. Half-to-even keeps the
// rounding unbiased, bounding cumulative drift at half a contract per cell
// with no systematic direction.
func QuantizeFootprint(cells []FootprintCell) []models.FootprintLevel {
	out := make([]models.FootprintLevel, 0, len(cells))
	for _, c := range cells {
		buy := int64(math.RoundToEven(c.Buy))
		total := int64(math.RoundToEven(c.Buy + c.Sell))
		out = append(out, models.FootprintLevel{
			BarTime:    c.BarTime,
			Symbol:     c.Symbol,
			Price:      c.Price,
			BuyVolume:  buy,
			SellVolume: total - buy,
			TradeCount: c.Seconds,
		})
	}
	return out
}

// QuantizeCVD converts exact BVC minute rows to the persisted schema. The
// minute total buy+sell is an exact integer by construction, so
// sell = total - buy and buy_volume + sell_volume equals the bar volume with
// no drift; delta stays consistent with the stored sides.
func QuantizeCVD(rows []CVDRow) []models.CVDRecord {
	out := make([]models.CVDRecord, 0, len(rows))
	for _, r := range rows {
		buy := int64(math.RoundToEven(r.Buy))
		total := int64(math.RoundToEven(r.Buy + r.Sell))
		sell := total - buy
		out = append(out, models.CVDRecord{
			BarTime:    r.BarTime,
			Symbol:     r.Symbol,
			BuyVolume:  buy,
			SellVolume: sell,
			Delta:      buy - sell,
			TradeCount: r.Seconds,
		})
	}
	return out
}
