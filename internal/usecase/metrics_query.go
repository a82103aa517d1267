package usecase

import (
	"context"
	"fmt"

	"github.com/pcashcroft/backtest/internal/domain/models"
	domrepo "github.com/pcashcroft/backtest/internal/domain/repository"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/manifest"
	"github.com/pcashcroft/backtest/internal/resolve"
)

// MetricsUseCase serves derived trade metrics with source resolution. It only
// reads partitions the manifest covers, so a partition that is mid-build is
// invisible until its atomic publish lands.
type MetricsUseCase struct {
	snap     *snapshot.Snapshot
	resolver *resolve.Resolver
	derived  domrepo.DerivedReader
	tracker  manifest.Tracker
}

func NewMetricsUseCase(
	snap *snapshot.Snapshot,
	resolver *resolve.Resolver,
	derived domrepo.DerivedReader,
	tracker manifest.Tracker,
) *MetricsUseCase {
	return &MetricsUseCase{snap: snap, resolver: resolver, derived: derived, tracker: tracker}
}

// GetMetricsParams selects one instrument's metric family over a date range.
// Mode, when set, overrides the instrument's configured metric_source_mode.
type GetMetricsParams struct {
	InstrumentID string
	Family       resolve.Family
	Session      models.Session
	From         models.Date
	To           models.Date
	Mode         snapshot.SourceMode
}

// TaggedFootprint is a footprint row tagged with the dataset origin that
// served its date.
type TaggedFootprint struct {
	Origin resolve.Origin `json:"origin"`
	models.FootprintLevel
}

// TaggedCVD is a CVD row tagged with its origin.
type TaggedCVD struct {
	Origin resolve.Origin `json:"origin"`
	models.CVDRecord
}

// GetFootprintResult carries resolved footprint rows plus the dates neither
// source covered.
type GetFootprintResult struct {
	InstrumentID string            `json:"instrument_id"`
	Session      models.Session    `json:"session"`
	From         models.Date       `json:"from"`
	To           models.Date       `json:"to"`
	Mode         string            `json:"mode"`
	Gaps         []models.Date     `json:"gaps"`
	Count        int               `json:"count"`
	Rows         []TaggedFootprint `json:"rows"`
}

// GetCVDResult carries resolved CVD rows plus uncovered dates.
type GetCVDResult struct {
	InstrumentID string         `json:"instrument_id"`
	Session      models.Session `json:"session"`
	From         models.Date    `json:"from"`
	To           models.Date    `json:"to"`
	Mode         string         `json:"mode"`
	Gaps         []models.Date  `json:"gaps"`
	Count        int            `json:"count"`
	Rows         []TaggedCVD    `json:"rows"`
}

func (uc *MetricsUseCase) plan(ctx context.Context, p GetMetricsParams) (resolve.Plan, snapshot.Dataset, snapshot.Dataset, string, error) {
	plan, err := uc.resolver.Resolve(ctx, p.InstrumentID, p.Family, p.From, p.To, p.Mode)
	if err != nil {
		return resolve.Plan{}, snapshot.Dataset{}, snapshot.Dataset{}, "", err
	}

	inst, err := uc.snap.Instrument(p.InstrumentID)
	if err != nil {
		return resolve.Plan{}, snapshot.Dataset{}, snapshot.Dataset{}, "", err
	}
	mode := inst.MetricSourceMode
	if p.Mode != "" {
		mode = p.Mode
	}

	realID, proxyID, err := resolve.FamilyDatasets(inst, p.Family)
	if err != nil {
		return resolve.Plan{}, snapshot.Dataset{}, snapshot.Dataset{}, "", err
	}
	var realDS, proxyDS snapshot.Dataset
	if realID != "" {
		if realDS, err = uc.snap.Dataset(realID); err != nil {
			return resolve.Plan{}, snapshot.Dataset{}, snapshot.Dataset{}, "", err
		}
	}
	if proxyID != "" {
		if proxyDS, err = uc.snap.Dataset(proxyID); err != nil {
			return resolve.Plan{}, snapshot.Dataset{}, snapshot.Dataset{}, "", err
		}
	}
	return plan, realDS, proxyDS, string(mode), nil
}

// GetFootprint resolves and reads footprint rows for the range.
func (uc *MetricsUseCase) GetFootprint(ctx context.Context, p GetMetricsParams) (*GetFootprintResult, error) {
	if p.Family == "" {
		p.Family = resolve.FamilyFootprint
	}
	if p.Family != resolve.FamilyFootprint {
		return nil, fmt.Errorf("footprint query got family %q", p.Family)
	}
	plan, realDS, proxyDS, mode, err := uc.plan(ctx, p)
	if err != nil {
		return nil, err
	}

	res := &GetFootprintResult{
		InstrumentID: p.InstrumentID,
		Session:      p.Session,
		From:         p.From,
		To:           p.To,
		Mode:         mode,
		Gaps:         plan.Gaps,
	}

	if dates := plan.RealDates(); len(dates) > 0 {
		rows, err := uc.derived.Footprint(ctx, realDS.Table, p.Session, dates)
		if err != nil {
			return nil, fmt.Errorf("read real footprint: %w", err)
		}
		for _, r := range rows {
			res.Rows = append(res.Rows, TaggedFootprint{Origin: resolve.OriginReal, FootprintLevel: r})
		}
	}
	if dates := plan.ProxyDates(); len(dates) > 0 {
		rows, err := uc.derived.Footprint(ctx, proxyDS.Table, p.Session, dates)
		if err != nil {
			return nil, fmt.Errorf("read proxy footprint: %w", err)
		}
		for _, r := range rows {
			res.Rows = append(res.Rows, TaggedFootprint{Origin: resolve.OriginProxy, FootprintLevel: r})
		}
	}
	res.Count = len(res.Rows)
	return res, nil
}

// GetCVD resolves and reads CVD rows for the range.
func (uc *MetricsUseCase) GetCVD(ctx context.Context, p GetMetricsParams) (*GetCVDResult, error) {
	if p.Family == "" {
		p.Family = resolve.FamilyCVD
	}
	if p.Family != resolve.FamilyCVD {
		return nil, fmt.Errorf("cvd query got family %q", p.Family)
	}
	plan, realDS, proxyDS, mode, err := uc.plan(ctx, p)
	if err != nil {
		return nil, err
	}

	res := &GetCVDResult{
		InstrumentID: p.InstrumentID,
		Session:      p.Session,
		From:         p.From,
		To:           p.To,
		Mode:         mode,
		Gaps:         plan.Gaps,
	}

	if dates := plan.RealDates(); len(dates) > 0 {
		rows, err := uc.derived.CVD(ctx, realDS.Table, p.Session, dates)
		if err != nil {
			return nil, fmt.Errorf("read real cvd: %w", err)
		}
		for _, r := range rows {
			res.Rows = append(res.Rows, TaggedCVD{Origin: resolve.OriginReal, CVDRecord: r})
		}
	}
	if dates := plan.ProxyDates(); len(dates) > 0 {
		rows, err := uc.derived.CVD(ctx, proxyDS.Table, p.Session, dates)
		if err != nil {
			return nil, fmt.Errorf("read proxy cvd: %w", err)
		}
		for _, r := range rows {
			res.Rows = append(res.Rows, TaggedCVD{Origin: resolve.OriginProxy, CVDRecord: r})
		}
	}
	res.Count = len(res.Rows)
	return res, nil
}

// GetBarsResult carries minute bars and the uncovered dates of the range.
type GetBarsResult struct {
	InstrumentID string         `json:"instrument_id"`
	Session      models.Session `json:"session"`
	From         models.Date    `json:"from"`
	To           models.Date    `json:"to"`
	Gaps         []models.Date  `json:"gaps"`
	Count        int            `json:"count"`
	Bars         []models.Bar   `json:"bars"`
}

// GetBars reads minute bars for the manifest-covered part of the range.
func (uc *MetricsUseCase) GetBars(ctx context.Context, instrumentID string, session models.Session, from, to models.Date) (*GetBarsResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("to %s precedes from %s", to, from)
	}
	inst, err := uc.snap.Instrument(instrumentID)
	if err != nil {
		return nil, err
	}
	if inst.BarsDatasetID == "" {
		return nil, fmt.Errorf("instrument %s has no bars dataset configured", instrumentID)
	}
	ds, err := uc.snap.Dataset(inst.BarsDatasetID)
	if err != nil {
		return nil, err
	}

	covered, err := uc.tracker.CoveredDates(ctx, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("bars coverage: %w", err)
	}

	res := &GetBarsResult{InstrumentID: instrumentID, Session: session, From: from, To: to}
	var dates []models.Date
	for _, d := range models.DateRange(from, to) {
		if _, ok := covered[d]; ok {
			dates = append(dates, d)
		} else {
			res.Gaps = append(res.Gaps, d)
		}
	}
	if len(dates) > 0 {
		res.Bars, err = uc.derived.Bars(ctx, ds.Table, session, dates)
		if err != nil {
			return nil, fmt.Errorf("read bars: %w", err)
		}
	}
	res.Count = len(res.Bars)
	return res, nil
}
