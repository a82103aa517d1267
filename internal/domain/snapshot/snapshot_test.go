package snapshot

import (
	"strings"
	"testing"
)

const fixture = `{
  "exported_at": "2025-08-01T10:00:00",
  "sheets": {
    "INSTRUMENTS": [
      {
        "instrument_id": "ES",
        "bars_dataset_id": "ES_BARS_1M",
        "footprint_dataset_id": "ES_FOOTPRINT_1M",
        "footprint_proxy_dataset_id": "ES_FOOTPRINT_PROXY_1M",
        "cvd_dataset_id": "ES_CVD_1M",
        "cvd_proxy_dataset_id": "ES_CVD_PROXY_1M",
        "big_trades_dataset_id": "ES_BIG_TRADES",
        "big_trades_proxy_dataset_id": "ES_BIG_TRADES_PROXY",
        "metric_source_mode": "real_then_proxy"
      }
    ],
    "DATASETS": [
      {"dataset_id": "DB_ES_TRADES", "dataset_type": "canonical_trades", "canonical_table_name": "es_trades"},
      {"dataset_id": "DB_ES_OHLCV_1S", "dataset_type": "canonical_ohlcv_1s", "canonical_table_name": "es_ohlcv_1s"},
      {"dataset_id": "ES_BARS_1M", "dataset_type": "derived_bars", "source_dataset_id": "DB_ES_OHLCV_1S", "canonical_table_name": "bars_1m"},
      {"dataset_id": "ES_FOOTPRINT_1M", "dataset_type": "derived_trade_metrics", "metric_type": "footprint", "source_dataset_id": "DB_ES_TRADES", "canonical_table_name": "footprint_base_1m"},
      {"dataset_id": "ES_FOOTPRINT_PROXY_1M", "dataset_type": "derived_trade_metrics_proxy", "metric_type": "footprint", "source_dataset_id": "DB_ES_OHLCV_1S", "canonical_table_name": "footprint_proxy_1m"},
      {"dataset_id": "ES_CVD_1M", "dataset_type": "derived_trade_metrics", "metric_type": "cvd", "source_dataset_id": "DB_ES_TRADES", "canonical_table_name": "cvd_1m"},
      {"dataset_id": "ES_CVD_PROXY_1M", "dataset_type": "derived_trade_metrics_proxy", "metric_type": "cvd", "source_dataset_id": "DB_ES_OHLCV_1S", "canonical_table_name": "cvd_proxy_1m"},
      {"dataset_id": "ES_BIG_TRADES", "dataset_type": "big_trades", "source_dataset_id": "DB_ES_TRADES", "canonical_table_name": "big_trades", "threshold_method": "rolling_pct", "threshold_pct": 99.5, "threshold_window_days": 21},
      {"dataset_id": "ES_BIG_TRADES_PROXY", "dataset_type": "big_trades_proxy", "source_dataset_id": "DB_ES_OHLCV_1S", "canonical_table_name": "big_trades_proxy"}
    ]
  }
}`

func TestParseSnapshot(t *testing.T) {
	s, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	inst, err := s.Instrument("ES")
	if err != nil {
		t.Fatalf("instrument: %v", err)
	}
	if inst.MetricSourceMode != RealThenProxy {
		t.Fatalf("mode = %s", inst.MetricSourceMode)
	}
	if inst.CVDNeutralPolicy != NeutralCounted {
		t.Fatalf("neutral policy default = %s", inst.CVDNeutralPolicy)
	}

	bt, err := s.Dataset("ES_BIG_TRADES")
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if bt.Threshold.Method != RollingPct || bt.Threshold.Pct != 99.5 || bt.Threshold.WindowDays != 21 {
		t.Fatalf("threshold = %+v", bt.Threshold)
	}
	// Blank threshold columns fall back to defaults.
	if bt.Threshold.MinSize != 50 || bt.Threshold.Z != 2.5 {
		t.Fatalf("threshold defaults = %+v", bt.Threshold)
	}

	// Omitted threshold_method defaults to fixed_count.
	btp, _ := s.Dataset("ES_BIG_TRADES_PROXY")
	if btp.Threshold.Method != FixedCount || btp.Threshold.MinSize != 50 {
		t.Fatalf("proxy threshold = %+v", btp.Threshold)
	}

	if got := s.Datasets(DerivedProxy); len(got) != 2 {
		t.Fatalf("proxy datasets = %d", len(got))
	}
}

func TestParseSnapshotRejectsUnknownEnums(t *testing.T) {
	bad := strings.Replace(fixture, `"real_then_proxy"`, `"realish"`, 1)
	if _, err := Parse([]byte(bad)); err == nil || !strings.Contains(err.Error(), "metric_source_mode") {
		t.Fatalf("expected metric_source_mode error, got %v", err)
	}

	bad = strings.Replace(fixture, `"rolling_pct"`, `"percentile"`, 1)
	if _, err := Parse([]byte(bad)); err == nil || !strings.Contains(err.Error(), "threshold_method") {
		t.Fatalf("expected threshold_method error, got %v", err)
	}
}

func TestParseSnapshotRejectsDanglingReferences(t *testing.T) {
	bad := strings.Replace(fixture, `"bars_dataset_id": "ES_BARS_1M"`, `"bars_dataset_id": "ES_BARS_5M"`, 1)
	if _, err := Parse([]byte(bad)); err == nil || !strings.Contains(err.Error(), "ES_BARS_5M") {
		t.Fatalf("expected dangling dataset error, got %v", err)
	}
}

func TestSourceModeParsing(t *testing.T) {
	for _, valid := range []string{"real_only", "proxy_only", "real_then_proxy", "proxy_then_real", "both"} {
		if _, err := ParseSourceMode(valid); err != nil {
			t.Fatalf("ParseSourceMode(%s): %v", valid, err)
		}
	}
	if _, err := ParseSourceMode("real"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
