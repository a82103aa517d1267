package build

import (
	"context"
	"fmt"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/repository"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/manifest"
	"github.com/pcashcroft/backtest/pkg/logger"
)

// buildVersion feeds the manifest fingerprint. Bump it whenever an
// aggregation algorithm changes so previously covered dates surface as stale.
const buildVersion = "2"

// Runner drives incremental derived-dataset builds: diff the requested range
// against the manifest, build only uncovered dates, publish each date
// atomically, then extend coverage. A failed date never touches the manifest.
type Runner struct {
	snap     *snapshot.Snapshot
	canon    repository.CanonicalReader
	writer   repository.DerivedWriter
	tracker  manifest.Tracker
	log      *logger.Logger
	metrics  repository.Metrics
	notifier repository.Notifier
}

// NewRunner wires a build runner. notifier may be nil when no downstream
// consumers need partition announcements.
func NewRunner(
	snap *snapshot.Snapshot,
	canon repository.CanonicalReader,
	writer repository.DerivedWriter,
	tracker manifest.Tracker,
	log *logger.Logger,
	metrics repository.Metrics,
	notifier repository.Notifier,
) *Runner {
	return &Runner{
		snap:     snap,
		canon:    canon,
		writer:   writer,
		tracker:  tracker,
		log:      log,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Options selects what one build pass covers.
type Options struct {
	// DatasetIDs restricts the pass to specific derived datasets. Empty means
	// every buildable derived dataset in the snapshot.
	DatasetIDs []string
	Start      models.Date
	End        models.Date
	Sessions   []models.Session
	// Force rebuilds covered dates, including stale ones, in place.
	Force bool
}

// DatasetSummary reports one (dataset, session) build outcome.
type DatasetSummary struct {
	DatasetID    string
	Session      models.Session
	Built        []models.Date
	Skipped      []models.Date
	Stale        []models.Date
	Missing      []models.Date
	Failed       map[models.Date]string
	RowsWritten  int64
	UnknownSides int64
}

// Summary aggregates a whole pass.
type Summary struct {
	Datasets []DatasetSummary
}

// Failures counts dates that errored across all datasets.
func (s *Summary) Failures() int {
	n := 0
	for _, d := range s.Datasets {
		n += len(d.Failed)
	}
	return n
}

// buildOrder is the dataset-type build order. Bars first so chart layers can
// refresh early; metric builders are independent of each other.
var buildOrder = []snapshot.DatasetType{
	snapshot.DerivedBars,
	snapshot.DerivedMetrics,
	snapshot.DerivedProxy,
}

// Run executes one incremental pass. Per-date failures are recorded in the
// summary and do not abort the pass; only context cancellation does.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Start == "" || opts.End == "" {
		return nil, fmt.Errorf("build: start and end dates are required")
	}
	if opts.End.Before(opts.Start) {
		return nil, fmt.Errorf("build: end date %s precedes start %s", opts.End, opts.Start)
	}
	sessions := opts.Sessions
	if len(sessions) == 0 {
		sessions = models.Sessions()
	}

	datasets, err := r.selectDatasets(opts.DatasetIDs)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, ds := range datasets {
		for _, sess := range sessions {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			dsum, err := r.buildDataset(ctx, ds, sess, opts)
			if err != nil {
				return summary, err
			}
			summary.Datasets = append(summary.Datasets, dsum)
		}
	}
	return summary, nil
}

func (r *Runner) selectDatasets(ids []string) ([]snapshot.Dataset, error) {
	if len(ids) == 0 {
		var out []snapshot.Dataset
		for _, t := range buildOrder {
			out = append(out, r.snap.Datasets(t)...)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("build: snapshot defines no buildable derived datasets")
		}
		return out, nil
	}

	out := make([]snapshot.Dataset, 0, len(ids))
	for _, id := range ids {
		ds, err := r.snap.Dataset(id)
		if err != nil {
			return nil, err
		}
		switch ds.Type {
		case snapshot.DerivedBars, snapshot.DerivedMetrics, snapshot.DerivedProxy:
		default:
			return nil, fmt.Errorf("build: dataset %s has type %s, which is not buildable", id, ds.Type)
		}
		out = append(out, ds)
	}
	return out, nil
}

func (r *Runner) buildDataset(ctx context.Context, ds snapshot.Dataset, sess models.Session, opts Options) (DatasetSummary, error) {
	dsum := DatasetSummary{DatasetID: ds.ID, Session: sess, Failed: make(map[models.Date]string)}

	src, err := r.snap.Dataset(ds.SourceDatasetID)
	if err != nil {
		return dsum, fmt.Errorf("dataset %s: %w", ds.ID, err)
	}
	policy, err := r.neutralPolicy(ds)
	if err != nil {
		return dsum, err
	}

	avail, err := r.canon.AvailableDates(ctx, src.Table, sess)
	if err != nil {
		return dsum, fmt.Errorf("dataset %s: list canonical dates: %w", ds.ID, err)
	}
	availSet := make(map[models.Date]bool, len(avail))
	for _, d := range avail {
		availSet[d] = true
	}

	var candidates []models.Date
	for _, d := range models.DateRange(opts.Start, opts.End) {
		if availSet[d] {
			candidates = append(candidates, d)
		} else {
			dsum.Missing = append(dsum.Missing, d)
		}
	}

	covered, err := r.tracker.CoveredDates(ctx, ds.ID)
	if err != nil {
		return dsum, fmt.Errorf("dataset %s: read manifest: %w", ds.ID, err)
	}

	fp := r.fingerprint(ds, src, sess, policy)
	plan := manifest.Diff(candidates, covered, fp, opts.Force)
	dsum.Skipped = plan.Skipped
	dsum.Stale = plan.Stale

	for range plan.Skipped {
		r.metrics.RecordDateSkipped(ds.ID)
	}
	for _, d := range plan.Stale {
		r.log.Warn("date covered with different build parameters, use force to rebuild",
			logger.String("dataset", ds.ID),
			logger.String("session", string(sess)),
			logger.String("date", string(d)))
	}

	for _, d := range plan.ToBuild {
		if err := ctx.Err(); err != nil {
			return dsum, err
		}
		start := time.Now()
		rows, unknown, err := r.buildDate(ctx, ds, src, sess, d, policy)
		if err != nil {
			r.metrics.RecordBuildError(ds.ID)
			dsum.Failed[d] = err.Error()
			r.log.Error("date build failed",
				logger.String("dataset", ds.ID),
				logger.String("session", string(sess)),
				logger.String("date", string(d)),
				logger.Error(err))
			continue
		}

		entry := manifest.Entry{
			DatasetID:   ds.ID,
			Date:        d,
			Fingerprint: fp,
			RowCount:    rows,
			BuiltAt:     time.Now().UTC(),
		}
		if err := r.tracker.Extend(ctx, entry); err != nil {
			// The partition is published but uncovered; the next pass rebuilds
			// it idempotently.
			r.metrics.RecordBuildError(ds.ID)
			dsum.Failed[d] = fmt.Sprintf("extend manifest: %v", err)
			r.log.Error("manifest extend failed after publish",
				logger.String("dataset", ds.ID),
				logger.String("date", string(d)),
				logger.Error(err))
			continue
		}

		dsum.Built = append(dsum.Built, d)
		dsum.RowsWritten += rows
		dsum.UnknownSides += unknown
		r.metrics.RecordDateBuilt(ds.ID)
		r.metrics.RecordRowsWritten(ds.ID, rows)
		if unknown > 0 {
			r.metrics.RecordUnknownSides(ds.ID, unknown)
		}
		r.metrics.RecordLatency("build_date", time.Since(start).Seconds())

		if r.notifier != nil {
			if err := r.notifier.PartitionBuilt(ctx, ds.ID, sess, d, rows); err != nil {
				r.log.Warn("partition notification failed",
					logger.String("dataset", ds.ID),
					logger.String("date", string(d)),
					logger.Error(err))
			}
		}

		r.log.Info("date built",
			logger.String("dataset", ds.ID),
			logger.String("session", string(sess)),
			logger.String("date", string(d)),
			logger.Int64("rows", rows),
			logger.Int64("unknown_sides", unknown))
	}

	return dsum, nil
}

// neutralPolicy resolves the owning instrument's CVD neutral handling for a
// real trade-metrics dataset. Other dataset types do not branch on it.
func (r *Runner) neutralPolicy(ds snapshot.Dataset) (snapshot.NeutralPolicy, error) {
	if ds.Type != snapshot.DerivedMetrics || ds.MetricType != snapshot.MetricCVD {
		return snapshot.NeutralCounted, nil
	}
	inst, ok := r.snap.InstrumentForDataset(ds.ID)
	if !ok {
		return "", fmt.Errorf("dataset %s: no instrument references it, cannot resolve cvd_neutral_policy", ds.ID)
	}
	return inst.CVDNeutralPolicy, nil
}

func (r *Runner) fingerprint(ds, src snapshot.Dataset, sess models.Session, policy snapshot.NeutralPolicy) string {
	return manifest.Fingerprint(
		buildVersion,
		ds.ID,
		string(ds.Type),
		string(ds.MetricType),
		src.Table,
		string(sess),
		string(policy),
	)
}

// buildDate reads one canonical date, aggregates, and publishes atomically.
// Returns rows written and the count of unknown side codes encountered.
func (r *Runner) buildDate(
	ctx context.Context,
	ds, src snapshot.Dataset,
	sess models.Session,
	date models.Date,
	policy snapshot.NeutralPolicy,
) (int64, int64, error) {
	switch ds.Type {
	case snapshot.DerivedBars:
		seconds, err := r.canon.SecondBars(ctx, src.Table, sess, date)
		if err != nil {
			return 0, 0, fmt.Errorf("read second bars: %w", err)
		}
		rows := AggregateBars(seconds)
		if err := r.writer.WriteBars(ctx, ds.Table, sess, date, rows); err != nil {
			return 0, 0, fmt.Errorf("write bars: %w", err)
		}
		return int64(len(rows)), 0, nil

	case snapshot.DerivedMetrics:
		trades, err := r.canon.Trades(ctx, src.Table, sess, date)
		if err != nil {
			return 0, 0, fmt.Errorf("read trades: %w", err)
		}
		switch ds.MetricType {
		case snapshot.MetricFootprint:
			rows, unknown := RealFootprint(trades)
			if err := r.writer.WriteFootprint(ctx, ds.Table, sess, date, rows); err != nil {
				return 0, 0, fmt.Errorf("write footprint: %w", err)
			}
			return int64(len(rows)), unknown, nil
		case snapshot.MetricCVD:
			rows, unknown := RealCVD(trades, policy)
			if err := r.writer.WriteCVD(ctx, ds.Table, sess, date, rows); err != nil {
				return 0, 0, fmt.Errorf("write cvd: %w", err)
			}
			return int64(len(rows)), unknown, nil
		}
		return 0, 0, fmt.Errorf("unsupported metric type %q", ds.MetricType)

	case snapshot.DerivedProxy:
		seconds, err := r.canon.SecondBars(ctx, src.Table, sess, date)
		if err != nil {
			return 0, 0, fmt.Errorf("read second bars: %w", err)
		}
		switch ds.MetricType {
		case snapshot.MetricFootprint:
			rows := QuantizeFootprint(ProxyFootprint(seconds))
			if err := r.writer.WriteFootprint(ctx, ds.Table, sess, date, rows); err != nil {
				return 0, 0, fmt.Errorf("write footprint: %w", err)
			}
			return int64(len(rows)), 0, nil
		case snapshot.MetricCVD:
			rows := QuantizeCVD(ProxyCVD(seconds))
			if err := r.writer.WriteCVD(ctx, ds.Table, sess, date, rows); err != nil {
				return 0, 0, fmt.Errorf("write cvd: %w", err)
			}
			return int64(len(rows)), 0, nil
		}
		return 0, 0, fmt.Errorf("unsupported metric type %q", ds.MetricType)
	}
	return 0, 0, fmt.Errorf("dataset type %s is not buildable", ds.Type)
}
