package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Snapshot is the immutable configuration value exported from the run-config
// workbook. Loaded once per invocation and passed explicitly to components.
type Snapshot struct {
	ExportedAt  string
	instruments map[string]Instrument
	datasets    map[string]Dataset
}

// Raw sheet rows as exported by the workbook snapshot tool. Blank numeric
// cells arrive as null, hence the pointer fields; defaults fill them with the
// long-standing threshold defaults.
type rawInstrument struct {
	InstrumentID            string `json:"instrument_id" validate:"required"`
	BarsDatasetID           string `json:"bars_dataset_id"`
	FootprintDatasetID      string `json:"footprint_dataset_id"`
	FootprintProxyDatasetID string `json:"footprint_proxy_dataset_id"`
	CVDDatasetID            string `json:"cvd_dataset_id"`
	CVDProxyDatasetID       string `json:"cvd_proxy_dataset_id"`
	BigTradesDatasetID      string `json:"big_trades_dataset_id"`
	BigTradesProxyDatasetID string `json:"big_trades_proxy_dataset_id"`
	MetricSourceMode        string `json:"metric_source_mode" default:"real_then_proxy"`
	CVDNeutralPolicy        string `json:"cvd_neutral_policy" default:"counted_unattributed"`
}

type rawDataset struct {
	DatasetID           string   `json:"dataset_id" validate:"required"`
	DatasetType         string   `json:"dataset_type" validate:"required"`
	MetricType          string   `json:"metric_type"`
	SourceDatasetID     string   `json:"source_dataset_id"`
	Table               string   `json:"canonical_table_name" validate:"required"`
	ThresholdMethod     string   `json:"threshold_method"`
	ThresholdMinSize    *int64   `json:"threshold_min_size" default:"50"`
	ThresholdPct        *float64 `json:"threshold_pct" default:"99.0"`
	ThresholdZ          *float64 `json:"threshold_z" default:"2.5"`
	ThresholdWindowDays *int     `json:"threshold_window_days" default:"63"`
}

type rawFile struct {
	ExportedAt string `json:"exported_at"`
	Sheets     struct {
		Instruments []rawInstrument `json:"INSTRUMENTS"`
		Datasets    []rawDataset    `json:"DATASETS"`
	} `json:"sheets"`
}

var validate = validator.New()

// Load reads and validates a config snapshot JSON file.
func Load(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(b)
}

// Parse validates snapshot bytes. All string-valued dispatch fields
// (metric_source_mode, threshold_method, dataset_type, metric_type,
// cvd_neutral_policy) are resolved to closed enums here, so use sites never
// branch on raw strings.
func Parse(b []byte) (*Snapshot, error) {
	var raw rawFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(raw.Sheets.Instruments) == 0 {
		return nil, fmt.Errorf("snapshot has no INSTRUMENTS rows")
	}
	if len(raw.Sheets.Datasets) == 0 {
		return nil, fmt.Errorf("snapshot has no DATASETS rows")
	}

	s := &Snapshot{
		ExportedAt:  raw.ExportedAt,
		instruments: make(map[string]Instrument, len(raw.Sheets.Instruments)),
		datasets:    make(map[string]Dataset, len(raw.Sheets.Datasets)),
	}

	for i := range raw.Sheets.Datasets {
		r := &raw.Sheets.Datasets[i]
		if err := defaults.Set(r); err != nil {
			return nil, fmt.Errorf("dataset defaults: %w", err)
		}
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("DATASETS row %d: %w", i, err)
		}
		ds, err := parseDataset(r)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", r.DatasetID, err)
		}
		if _, dup := s.datasets[ds.ID]; dup {
			return nil, fmt.Errorf("duplicate dataset_id %s", ds.ID)
		}
		s.datasets[ds.ID] = ds
	}

	for i := range raw.Sheets.Instruments {
		r := &raw.Sheets.Instruments[i]
		if err := defaults.Set(r); err != nil {
			return nil, fmt.Errorf("instrument defaults: %w", err)
		}
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("INSTRUMENTS row %d: %w", i, err)
		}
		inst, err := s.parseInstrument(r)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", r.InstrumentID, err)
		}
		if _, dup := s.instruments[inst.ID]; dup {
			return nil, fmt.Errorf("duplicate instrument_id %s", inst.ID)
		}
		s.instruments[inst.ID] = inst
	}

	// Derived rows must point at a dataset that exists in the same snapshot.
	for _, ds := range s.datasets {
		if ds.SourceDatasetID == "" {
			continue
		}
		if _, ok := s.datasets[ds.SourceDatasetID]; !ok {
			return nil, fmt.Errorf(
				"dataset %s references unknown source_dataset_id %s", ds.ID, ds.SourceDatasetID)
		}
	}

	return s, nil
}

func parseDataset(r *rawDataset) (Dataset, error) {
	dt, err := ParseDatasetType(r.DatasetType)
	if err != nil {
		return Dataset{}, err
	}

	ds := Dataset{
		ID:              r.DatasetID,
		Type:            dt,
		SourceDatasetID: r.SourceDatasetID,
		Table:           r.Table,
	}

	switch dt {
	case DerivedMetrics, DerivedProxy:
		mt, err := ParseMetricType(r.MetricType)
		if err != nil {
			return Dataset{}, err
		}
		ds.MetricType = mt
	case BigTradesReal, BigTradesProxyDef:
		method := r.ThresholdMethod
		if method == "" {
			method = string(FixedCount)
		}
		tm, err := ParseThresholdMethod(method)
		if err != nil {
			return Dataset{}, err
		}
		ds.Threshold = Threshold{
			Method:     tm,
			MinSize:    *r.ThresholdMinSize,
			Pct:        *r.ThresholdPct,
			Z:          *r.ThresholdZ,
			WindowDays: *r.ThresholdWindowDays,
		}
		if ds.Threshold.Pct <= 0 || ds.Threshold.Pct >= 100 {
			return Dataset{}, fmt.Errorf("threshold_pct %v out of range (0,100)", ds.Threshold.Pct)
		}
		if ds.Threshold.WindowDays <= 0 {
			return Dataset{}, fmt.Errorf("threshold_window_days must be positive")
		}
	}

	switch dt {
	case DerivedBars, DerivedMetrics, DerivedProxy, BigTradesReal, BigTradesProxyDef:
		if ds.SourceDatasetID == "" {
			return Dataset{}, fmt.Errorf("%s dataset requires source_dataset_id", dt)
		}
	}

	return ds, nil
}

func (s *Snapshot) parseInstrument(r *rawInstrument) (Instrument, error) {
	mode, err := ParseSourceMode(r.MetricSourceMode)
	if err != nil {
		return Instrument{}, err
	}
	policy, err := ParseNeutralPolicy(r.CVDNeutralPolicy)
	if err != nil {
		return Instrument{}, err
	}

	inst := Instrument{
		ID:                      r.InstrumentID,
		BarsDatasetID:           r.BarsDatasetID,
		FootprintDatasetID:      r.FootprintDatasetID,
		FootprintProxyDatasetID: r.FootprintProxyDatasetID,
		CVDDatasetID:            r.CVDDatasetID,
		CVDProxyDatasetID:       r.CVDProxyDatasetID,
		BigTradesDatasetID:      r.BigTradesDatasetID,
		BigTradesProxyDatasetID: r.BigTradesProxyDatasetID,
		MetricSourceMode:        mode,
		CVDNeutralPolicy:        policy,
	}

	for _, id := range []string{
		inst.BarsDatasetID,
		inst.FootprintDatasetID, inst.FootprintProxyDatasetID,
		inst.CVDDatasetID, inst.CVDProxyDatasetID,
		inst.BigTradesDatasetID, inst.BigTradesProxyDatasetID,
	} {
		if id == "" {
			continue
		}
		if _, ok := s.datasets[id]; !ok {
			return Instrument{}, fmt.Errorf("references unknown dataset_id %s", id)
		}
	}
	return inst, nil
}

// Instrument returns the instrument row by id.
func (s *Snapshot) Instrument(id string) (Instrument, error) {
	inst, ok := s.instruments[id]
	if !ok {
		return Instrument{}, fmt.Errorf("instrument not found in snapshot: %s", id)
	}
	return inst, nil
}

// Dataset returns the dataset row by id.
func (s *Snapshot) Dataset(id string) (Dataset, error) {
	ds, ok := s.datasets[id]
	if !ok {
		return Dataset{}, fmt.Errorf("dataset not found in snapshot: %s", id)
	}
	return ds, nil
}

// Datasets returns every dataset of the given type, for builder iteration.
func (s *Snapshot) Datasets(t DatasetType) []Dataset {
	var out []Dataset
	for _, ds := range s.datasets {
		if ds.Type == t {
			out = append(out, ds)
		}
	}
	return out
}

// InstrumentForDataset finds the instrument that owns a dataset id in any of
// its metric families.
func (s *Snapshot) InstrumentForDataset(datasetID string) (Instrument, bool) {
	for _, inst := range s.instruments {
		switch datasetID {
		case inst.BarsDatasetID,
			inst.FootprintDatasetID, inst.FootprintProxyDatasetID,
			inst.CVDDatasetID, inst.CVDProxyDatasetID,
			inst.BigTradesDatasetID, inst.BigTradesProxyDatasetID:
			return inst, true
		}
	}
	return Instrument{}, false
}

// Instruments returns all instrument ids.
func (s *Snapshot) Instruments() []string {
	out := make([]string, 0, len(s.instruments))
	for id := range s.instruments {
		out = append(out, id)
	}
	return out
}
