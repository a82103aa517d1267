package bigtrades

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/repository"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/pkg/logger"
)

// Upstream selects which canonical source the events are derived from.
type Upstream string

const (
	UpstreamReal  Upstream = "real"
	UpstreamProxy Upstream = "proxy"
)

// ParseUpstream validates an upstream selector.
func ParseUpstream(s string) (Upstream, error) {
	switch u := Upstream(s); u {
	case UpstreamReal, UpstreamProxy:
		return u, nil
	}
	return "", fmt.Errorf("unknown big-trade upstream %q: expected real or proxy", s)
}

// Engine computes large-trade events on demand. Events are never persisted;
// every query recomputes from canonical data, so threshold parameters can be
// changed freely without a rebuild. Queries are read-only and re-entrant.
type Engine struct {
	snap  *snapshot.Snapshot
	canon repository.CanonicalReader
	log   *logger.Logger
}

func NewEngine(snap *snapshot.Snapshot, canon repository.CanonicalReader, log *logger.Logger) *Engine {
	return &Engine{snap: snap, canon: canon, log: log}
}

// Query selects one instrument's events over a date range. Threshold
// overrides the configured dataset threshold when non-nil, which is the
// experimentation path the on-demand design exists for.
type Query struct {
	InstrumentID string
	Session      models.Session
	Start        models.Date
	End          models.Date
	Upstream     Upstream
	Threshold    *snapshot.Threshold
}

// Events computes big-trade events for the query, ordered chronologically.
// Dates without canonical coverage contribute nothing. Rolling methods load
// up to window_days of history before Start to seed the window; when that
// history is itself incomplete the leading dates get a partial window rather
// than an error.
func (e *Engine) Events(ctx context.Context, q Query) ([]models.BigTradeEvent, error) {
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("bigtrades: end date %s precedes start %s", q.End, q.Start)
	}

	inst, err := e.snap.Instrument(q.InstrumentID)
	if err != nil {
		return nil, err
	}
	ds, src, err := e.resolveDatasets(inst, q.Upstream)
	if err != nil {
		return nil, err
	}
	th := ds.Threshold
	if q.Threshold != nil {
		th = *q.Threshold
	}

	avail, err := e.canon.AvailableDates(ctx, src.Table, q.Session)
	if err != nil {
		return nil, fmt.Errorf("bigtrades: list canonical dates: %w", err)
	}
	// AvailableDates does not guarantee order; rolling windows need it.
	sort.Slice(avail, func(i, j int) bool { return avail[i] < avail[j] })

	var events []models.BigTradeEvent
	switch th.Method {
	case snapshot.FixedCount:
		events, err = e.fixedCount(ctx, src, q, avail, float64(th.MinSize))
	case snapshot.RollingPct, snapshot.ZScore:
		events, err = e.rolling(ctx, src, q, avail, th)
	default:
		return nil, fmt.Errorf("bigtrades: unsupported threshold method %q", th.Method)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TsEvent.Before(events[j].TsEvent)
	})
	return events, nil
}

func (e *Engine) resolveDatasets(inst snapshot.Instrument, up Upstream) (snapshot.Dataset, snapshot.Dataset, error) {
	var id string
	switch up {
	case UpstreamReal:
		id = inst.BigTradesDatasetID
	case UpstreamProxy:
		id = inst.BigTradesProxyDatasetID
	default:
		return snapshot.Dataset{}, snapshot.Dataset{}, fmt.Errorf("bigtrades: unknown upstream %q", up)
	}
	if id == "" {
		return snapshot.Dataset{}, snapshot.Dataset{}, fmt.Errorf(
			"bigtrades: instrument %s has no %s big-trade dataset configured", inst.ID, up)
	}
	ds, err := e.snap.Dataset(id)
	if err != nil {
		return snapshot.Dataset{}, snapshot.Dataset{}, err
	}
	src, err := e.snap.Dataset(ds.SourceDatasetID)
	if err != nil {
		return snapshot.Dataset{}, snapshot.Dataset{}, fmt.Errorf("bigtrades: dataset %s: %w", ds.ID, err)
	}
	return ds, src, nil
}

func (e *Engine) fixedCount(
	ctx context.Context,
	src snapshot.Dataset,
	q Query,
	avail []models.Date,
	minSize float64,
) ([]models.BigTradeEvent, error) {
	var out []models.BigTradeEvent
	for _, d := range avail {
		if d.Before(q.Start) || q.End.Before(d) {
			continue
		}
		candidates, _, err := e.loadDate(ctx, src, q.Session, d, q.Upstream)
		if err != nil {
			return nil, err
		}
		for _, ev := range candidates {
			if float64(ev.Size) >= minSize {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

// rolling streams per-date: history dates only feed the window, range dates
// compute a threshold from strictly prior samples before their own samples
// enter the window.
func (e *Engine) rolling(
	ctx context.Context,
	src snapshot.Dataset,
	q Query,
	avail []models.Date,
	th snapshot.Threshold,
) ([]models.BigTradeEvent, error) {
	historyStart := q.Start.AddDays(-th.WindowDays)
	window := newSizeWindow(th.WindowDays)

	var out []models.BigTradeEvent
	for _, d := range avail {
		if d.Before(historyStart) {
			continue
		}
		if q.End.Before(d) {
			break
		}

		inRange := !d.Before(q.Start)
		if !inRange {
			// History date: seed the window without emitting.
			_, sizes, err := e.loadDate(ctx, src, q.Session, d, q.Upstream)
			if err != nil {
				return nil, err
			}
			window.push(d, sizes)
			continue
		}

		window.trim(d)
		candidates, sizes, err := e.loadDate(ctx, src, q.Session, d, q.Upstream)
		if err != nil {
			return nil, err
		}

		threshold, ok := resolveRolling(th, window.samples())
		if ok {
			for _, ev := range candidates {
				if float64(ev.Size) >= threshold {
					out = append(out, ev)
				}
			}
		} else {
			e.log.Debug("no trailing samples for date, emitting nothing",
				logger.String("date", string(d)),
				logger.String("method", string(th.Method)))
		}
		window.push(d, sizes)
	}
	return out, nil
}

// resolveRolling turns a trailing sample window into a size threshold.
// ok is false when the window cannot support the method, which yields an
// empty (partial) result for that date.
func resolveRolling(th snapshot.Threshold, samples []int64) (float64, bool) {
	switch th.Method {
	case snapshot.RollingPct:
		if len(samples) == 0 {
			return 0, false
		}
		return percentile(samples, th.Pct), true
	case snapshot.ZScore:
		if len(samples) < 2 {
			return 0, false
		}
		mean, sd := meanStddev(samples)
		return mean + th.Z*sd, true
	}
	return 0, false
}

// loadDate reads one canonical date and returns candidate events plus the
// size samples the date contributes to rolling windows.
func (e *Engine) loadDate(
	ctx context.Context,
	src snapshot.Dataset,
	sess models.Session,
	date models.Date,
	up Upstream,
) ([]models.BigTradeEvent, []int64, error) {
	switch up {
	case UpstreamReal:
		trades, err := e.canon.Trades(ctx, src.Table, sess, date)
		if err != nil {
			return nil, nil, fmt.Errorf("bigtrades: read trades %s: %w", date, err)
		}
		return realCandidates(trades)
	case UpstreamProxy:
		seconds, err := e.canon.SecondBars(ctx, src.Table, sess, date)
		if err != nil {
			return nil, nil, fmt.Errorf("bigtrades: read second bars %s: %w", date, err)
		}
		return proxyCandidates(seconds)
	}
	return nil, nil, fmt.Errorf("bigtrades: unknown upstream %q", up)
}

// realCandidates turns one date's trades into events. Spread symbols are
// excluded; unknown side codes fall back to Neutral and are still emitted.
func realCandidates(trades []models.Trade) ([]models.BigTradeEvent, []int64, error) {
	events := make([]models.BigTradeEvent, 0, len(trades))
	sizes := make([]int64, 0, len(trades))
	for _, t := range trades {
		if t.IsSpread() {
			continue
		}
		events = append(events, models.BigTradeEvent{
			TsEvent: t.TsEvent,
			Symbol:  t.Symbol,
			Price:   t.Price,
			Size:    t.Size,
			Side:    t.Side(),
		})
		sizes = append(sizes, t.Size)
	}
	return events, sizes, nil
}

// proxyCandidates synthesizes per-bar directional flow from second OHLCV.
// The close position in the bar range picks the side: above the midpoint is
// a buy at the bar high, below is a sell at the bar low. Event size is the
// winning side's share of the bar volume, rounded half to even like the
// proxy metric quantization. Bars with no directional signal (doji, or
// close exactly mid-range) are excluded rather than emitted as Neutral.
func proxyCandidates(seconds []models.Bar) ([]models.BigTradeEvent, []int64, error) {
	var events []models.BigTradeEvent
	var sizes []int64
	for _, s := range seconds {
		if s.Volume <= 0 || s.IsDoji() {
			continue
		}
		frac := (s.Close - s.Low) / (s.High - s.Low)
		ev := models.BigTradeEvent{TsEvent: s.BarTime, Symbol: s.Symbol}
		switch {
		case frac > 0.5:
			ev.Side = models.SideBuy
			ev.Price = s.High
			ev.Size = int64(math.RoundToEven(float64(s.Volume) * frac))
		case frac < 0.5:
			ev.Side = models.SideSell
			ev.Price = s.Low
			ev.Size = int64(math.RoundToEven(float64(s.Volume) * (1 - frac)))
		default:
			continue
		}
		events = append(events, ev)
		sizes = append(sizes, ev.Size)
	}
	return events, sizes, nil
}
