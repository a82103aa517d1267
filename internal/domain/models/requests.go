package models

// Requests for metric HTTP endpoints. Defined in domain for consistency and reuse.

type BarsRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	Session    string `query:"session" json:"session" default:"FULL" validate:"oneof=FULL RTH"`
	From       string `query:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To         string `query:"to" json:"to" validate:"required,datetime=2006-01-02"`
}

type MetricsRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	Session    string `query:"session" json:"session" default:"FULL" validate:"oneof=FULL RTH"`
	From       string `query:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To         string `query:"to" json:"to" validate:"required,datetime=2006-01-02"`
	Mode       string `query:"mode" json:"mode" validate:"omitempty,oneof=real_only proxy_only real_then_proxy proxy_then_real both"`
}

type BigTradesRequest struct {
	Instrument string  `query:"instrument" json:"instrument" validate:"required"`
	Session    string  `query:"session" json:"session" default:"FULL" validate:"oneof=FULL RTH"`
	From       string  `query:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To         string  `query:"to" json:"to" validate:"required,datetime=2006-01-02"`
	Upstream   string  `query:"upstream" json:"upstream" default:"real" validate:"oneof=real proxy"`
	Method     string  `query:"method" json:"method" validate:"omitempty,oneof=fixed_count rolling_pct z_score"`
	MinSize    int64   `query:"min_size" json:"min_size" validate:"omitempty,gte=1"`
	Pct        float64 `query:"pct" json:"pct" validate:"omitempty,gt=0,lt=100"`
	Z          float64 `query:"z" json:"z"`
	WindowDays int     `query:"window_days" json:"window_days" validate:"omitempty,gte=1"`
}
