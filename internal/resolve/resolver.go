package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/manifest"
)

// Origin tags which dataset family served a date.
type Origin string

const (
	OriginReal  Origin = "real"
	OriginProxy Origin = "proxy"
)

// DatePlan assigns one requested date to an origin. In "both" mode a covered
// date appears once per origin.
type DatePlan struct {
	Date   models.Date
	Origin Origin
}

// Plan is the resolver's answer for a (metric family, date range) request:
// which dataset serves each date, and which dates neither source covers.
// Gaps are reported explicitly, never silently omitted.
type Plan struct {
	Dates []DatePlan
	Gaps  []models.Date
}

// RealDates returns the planned dates served from the real dataset.
func (p Plan) RealDates() []models.Date { return p.datesFor(OriginReal) }

// ProxyDates returns the planned dates served from the proxy dataset.
func (p Plan) ProxyDates() []models.Date { return p.datesFor(OriginProxy) }

func (p Plan) datesFor(o Origin) []models.Date {
	var out []models.Date
	for _, dp := range p.Dates {
		if dp.Origin == o {
			out = append(out, dp.Date)
		}
	}
	return out
}

// Assign computes per-date origins from manifest coverage. It is pure: the
// coverage maps come from the manifest tracker, and nothing here triggers a
// build. real_then_proxy and proxy_then_real partition the covered dates
// exactly; both returns the union with duplicates for overlapping coverage.
func Assign(mode snapshot.SourceMode, requested []models.Date, realCov, proxyCov map[models.Date]bool) (Plan, error) {
	var p Plan
	for _, d := range requested {
		r, x := realCov[d], proxyCov[d]
		switch mode {
		case snapshot.RealOnly:
			if r {
				p.Dates = append(p.Dates, DatePlan{d, OriginReal})
			} else {
				p.Gaps = append(p.Gaps, d)
			}
		case snapshot.ProxyOnly:
			if x {
				p.Dates = append(p.Dates, DatePlan{d, OriginProxy})
			} else {
				p.Gaps = append(p.Gaps, d)
			}
		case snapshot.RealThenProxy:
			switch {
			case r:
				p.Dates = append(p.Dates, DatePlan{d, OriginReal})
			case x:
				p.Dates = append(p.Dates, DatePlan{d, OriginProxy})
			default:
				p.Gaps = append(p.Gaps, d)
			}
		case snapshot.ProxyThenReal:
			switch {
			case x:
				p.Dates = append(p.Dates, DatePlan{d, OriginProxy})
			case r:
				p.Dates = append(p.Dates, DatePlan{d, OriginReal})
			default:
				p.Gaps = append(p.Gaps, d)
			}
		case snapshot.Both:
			if r {
				p.Dates = append(p.Dates, DatePlan{d, OriginReal})
			}
			if x {
				p.Dates = append(p.Dates, DatePlan{d, OriginProxy})
			}
			if !r && !x {
				p.Gaps = append(p.Gaps, d)
			}
		default:
			return Plan{}, fmt.Errorf("resolve: unknown metric_source_mode %q", mode)
		}
	}
	return p, nil
}

// Resolver answers metric-family queries against the manifest.
type Resolver struct {
	snap    *snapshot.Snapshot
	tracker manifest.Tracker
}

func NewResolver(snap *snapshot.Snapshot, tracker manifest.Tracker) *Resolver {
	return &Resolver{snap: snap, tracker: tracker}
}

// Family names a real/proxy dataset pair on an instrument.
type Family string

const (
	FamilyFootprint Family = "footprint"
	FamilyCVD       Family = "cvd"
)

// ParseFamily validates a metric family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(s); f {
	case FamilyFootprint, FamilyCVD:
		return f, nil
	}
	return "", fmt.Errorf("unknown metric family %q: expected footprint or cvd", s)
}

// FamilyDatasets returns the (real, proxy) dataset ids for an instrument's
// metric family. Either id may be empty when the instrument does not carry
// that dataset.
func FamilyDatasets(inst snapshot.Instrument, f Family) (string, string, error) {
	switch f {
	case FamilyFootprint:
		return inst.FootprintDatasetID, inst.FootprintProxyDatasetID, nil
	case FamilyCVD:
		return inst.CVDDatasetID, inst.CVDProxyDatasetID, nil
	}
	return "", "", fmt.Errorf("unknown metric family %q", f)
}

// Resolve plans a date range for one instrument and metric family, using the
// instrument's configured metric_source_mode unless modeOverride is non-empty.
func (r *Resolver) Resolve(
	ctx context.Context,
	instrumentID string,
	family Family,
	start, end models.Date,
	modeOverride snapshot.SourceMode,
) (Plan, error) {
	if end.Before(start) {
		return Plan{}, fmt.Errorf("resolve: end date %s precedes start %s", end, start)
	}
	inst, err := r.snap.Instrument(instrumentID)
	if err != nil {
		return Plan{}, err
	}
	mode := inst.MetricSourceMode
	if modeOverride != "" {
		mode = modeOverride
	}

	realID, proxyID, err := FamilyDatasets(inst, family)
	if err != nil {
		return Plan{}, err
	}

	realCov, err := r.coverage(ctx, realID)
	if err != nil {
		return Plan{}, err
	}
	proxyCov, err := r.coverage(ctx, proxyID)
	if err != nil {
		return Plan{}, err
	}

	plan, err := Assign(mode, models.DateRange(start, end), realCov, proxyCov)
	if err != nil {
		return Plan{}, err
	}
	sort.SliceStable(plan.Dates, func(i, j int) bool { return plan.Dates[i].Date < plan.Dates[j].Date })
	return plan, nil
}

// DatasetIDs reports the dataset pair a plan reads from, for callers that
// need table names.
func (r *Resolver) DatasetIDs(instrumentID string, family Family) (string, string, error) {
	inst, err := r.snap.Instrument(instrumentID)
	if err != nil {
		return "", "", err
	}
	return FamilyDatasets(inst, family)
}

func (r *Resolver) coverage(ctx context.Context, datasetID string) (map[models.Date]bool, error) {
	if datasetID == "" {
		return nil, nil
	}
	covered, err := r.tracker.CoveredDates(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("resolve: coverage for %s: %w", datasetID, err)
	}
	out := make(map[models.Date]bool, len(covered))
	for d := range covered {
		out[d] = true
	}
	return out, nil
}
