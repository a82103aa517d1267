package models

import (
	"strings"
	"time"
)

// Side is the aggressor side of a trade or synthesized event.
type Side string

const (
	SideBuy     Side = "B"
	SideSell    Side = "S"
	SideNeutral Side = "N"
)

// DecodeSide maps the canonical side code to a Side. Codes outside {0,1,2}
// decode as Neutral with ok=false so builders can count them.
func DecodeSide(code uint8) (Side, bool) {
	switch code {
	case 2:
		return SideBuy, true
	case 1:
		return SideSell, true
	case 0:
		return SideNeutral, true
	default:
		return SideNeutral, false
	}
}

// Trade is one canonical tick trade.
type Trade struct {
	TsEvent  time.Time
	TsRecv   time.Time
	Symbol   string
	Price    float64
	Size     int64
	SideCode uint8
	Sequence uint64
	Flags    uint8
}

// Side decodes the aggressor side code.
func (t Trade) Side() Side {
	s, _ := DecodeSide(t.SideCode)
	return s
}

// IsSpread reports whether the symbol is a multi-leg/spread instrument
// (excluded from single-instrument aggregation).
func (t Trade) IsSpread() bool {
	return strings.Contains(t.Symbol, "-")
}

// Bar is an OHLCV bar at second or minute resolution. BarTime is the
// bucket start in UTC.
type Bar struct {
	BarTime   time.Time `json:"bar_time"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	TickCount int64     `json:"tick_count"`
}

// IsDoji reports zero intrabar range, which makes BVC direction ambiguous.
func (b Bar) IsDoji() bool {
	return b.High == b.Low
}

// FootprintLevel is buy/sell volume at one (minute, price) cell.
type FootprintLevel struct {
	BarTime    time.Time `json:"bar_time"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	TradeCount int64     `json:"trade_count"`
}

// CVDRecord is per-minute buy/sell volume with delta = buy - sell.
type CVDRecord struct {
	BarTime    time.Time `json:"bar_time"`
	Symbol     string    `json:"symbol"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	Delta      int64     `json:"delta"`
	TradeCount int64     `json:"trade_count"`
}

// BigTradeEvent is an ephemeral large-trade event. Never persisted;
// recomputed per query.
type BigTradeEvent struct {
	TsEvent time.Time `json:"ts_event"`
	Symbol  string    `json:"symbol"`
	Price   float64   `json:"price"`
	Size    int64     `json:"size"`
	Side    Side      `json:"side"`
}
