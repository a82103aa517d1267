package snapshot

import "fmt"

// SourceMode selects how real and proxy metrics blend per date range.
type SourceMode string

const (
	RealOnly      SourceMode = "real_only"
	ProxyOnly     SourceMode = "proxy_only"
	RealThenProxy SourceMode = "real_then_proxy"
	ProxyThenReal SourceMode = "proxy_then_real"
	Both          SourceMode = "both"
)

// ParseSourceMode validates a metric_source_mode value. Unknown values are a
// configuration error, never a silent default.
func ParseSourceMode(s string) (SourceMode, error) {
	switch m := SourceMode(s); m {
	case RealOnly, ProxyOnly, RealThenProxy, ProxyThenReal, Both:
		return m, nil
	}
	return "", fmt.Errorf(
		"unknown metric_source_mode %q: expected real_only, proxy_only, real_then_proxy, proxy_then_real or both", s)
}

// ThresholdMethod selects how the big-trade size cutoff is computed.
type ThresholdMethod string

const (
	FixedCount ThresholdMethod = "fixed_count"
	RollingPct ThresholdMethod = "rolling_pct"
	ZScore     ThresholdMethod = "z_score"
)

func ParseThresholdMethod(s string) (ThresholdMethod, error) {
	switch m := ThresholdMethod(s); m {
	case FixedCount, RollingPct, ZScore:
		return m, nil
	}
	return "", fmt.Errorf(
		"unknown threshold_method %q: expected fixed_count, rolling_pct or z_score", s)
}

// NeutralPolicy controls how neutral-side trades enter CVD totals.
type NeutralPolicy string

const (
	// NeutralCounted keeps neutral trades in trade_count but attributes their
	// volume to neither side.
	NeutralCounted NeutralPolicy = "counted_unattributed"
	// NeutralExcluded drops neutral trades before CVD aggregation entirely.
	NeutralExcluded NeutralPolicy = "excluded"
)

func ParseNeutralPolicy(s string) (NeutralPolicy, error) {
	switch p := NeutralPolicy(s); p {
	case NeutralCounted, NeutralExcluded:
		return p, nil
	}
	return "", fmt.Errorf(
		"unknown cvd_neutral_policy %q: expected counted_unattributed or excluded", s)
}

// DatasetType identifies what a DATASETS row describes.
type DatasetType string

const (
	CanonicalTrades   DatasetType = "canonical_trades"
	CanonicalOHLCV1s  DatasetType = "canonical_ohlcv_1s"
	DerivedBars       DatasetType = "derived_bars"
	DerivedMetrics    DatasetType = "derived_trade_metrics"
	DerivedProxy      DatasetType = "derived_trade_metrics_proxy"
	BigTradesReal     DatasetType = "big_trades"
	BigTradesProxyDef DatasetType = "big_trades_proxy"
)

func ParseDatasetType(s string) (DatasetType, error) {
	switch t := DatasetType(s); t {
	case CanonicalTrades, CanonicalOHLCV1s, DerivedBars, DerivedMetrics, DerivedProxy, BigTradesReal, BigTradesProxyDef:
		return t, nil
	}
	return "", fmt.Errorf("unknown dataset_type %q", s)
}

// MetricType distinguishes footprint from CVD inside the trade-metrics types.
type MetricType string

const (
	MetricFootprint MetricType = "footprint"
	MetricCVD       MetricType = "cvd"
)

func ParseMetricType(s string) (MetricType, error) {
	switch m := MetricType(s); m {
	case MetricFootprint, MetricCVD:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric_type %q: expected footprint or cvd", s)
}

// Threshold holds the per-dataset big-trade threshold parameters.
type Threshold struct {
	Method     ThresholdMethod
	MinSize    int64   // fixed_count
	Pct        float64 // rolling_pct, e.g. 99.0
	Z          float64 // z_score
	WindowDays int     // rolling_pct + z_score trailing window
}

// Dataset is one validated DATASETS row.
type Dataset struct {
	ID              string
	Type            DatasetType
	MetricType      MetricType // footprint/cvd datasets only
	SourceDatasetID string     // upstream dataset for derived/big-trade rows
	Table           string     // ClickHouse table name
	Threshold       Threshold  // big-trade rows only
}

// Instrument is one validated INSTRUMENTS row: dataset ids per metric family
// plus the blend and CVD policies.
type Instrument struct {
	ID                      string
	BarsDatasetID           string
	FootprintDatasetID      string
	FootprintProxyDatasetID string
	CVDDatasetID            string
	CVDProxyDatasetID       string
	BigTradesDatasetID      string
	BigTradesProxyDatasetID string
	MetricSourceMode        SourceMode
	CVDNeutralPolicy        NeutralPolicy
}
