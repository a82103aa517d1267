package api

import (
	"github.com/pcashcroft/backtest/internal/bigtrades"
	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/resolve"
	"github.com/pcashcroft/backtest/internal/usecase"
	xhttp "github.com/pcashcroft/backtest/pkg/http"
	"github.com/pcashcroft/backtest/pkg/http/middleware"
	xlogger "github.com/pcashcroft/backtest/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MetricsHandler exposes derived metrics and big-trade queries over HTTP.
type MetricsHandler struct {
	logger    *xlogger.Logger
	snap      *snapshot.Snapshot
	metrics   *usecase.MetricsUseCase
	bigTrades *usecase.BigTradesUseCase
}

func NewMetricsHandler(
	logger *xlogger.Logger,
	snap *snapshot.Snapshot,
	metrics *usecase.MetricsUseCase,
	bigTrades *usecase.BigTradesUseCase,
) *MetricsHandler {
	return &MetricsHandler{logger: logger, snap: snap, metrics: metrics, bigTrades: bigTrades}
}

func (h *MetricsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/instruments", h.Instruments)
	g.GET("/bars", h.Bars)
	g.GET("/footprint", h.Footprint)
	g.GET("/cvd", h.CVD)

	// Big-trade queries recompute from canonical data, so cap per-client rate.
	limited := middleware.RateLimit(middleware.NewRateLimiter(10, 2))
	g.GET("/big-trades", h.BigTrades, limited)
	g.GET("/big-trades/stream", h.BigTradesStream, limited)
}

// Instruments lists instrument ids from the loaded snapshot.
func (h *MetricsHandler) Instruments(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"exported_at": h.snap.ExportedAt,
		"instruments": h.snap.Instruments(),
	})
}

func (h *MetricsHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sess, from, to, err := parseRange(req.Session, req.From, req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.metrics.GetBars(c.Request().Context(), req.Instrument, sess, from, to)
	if err != nil {
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MetricsHandler) Footprint(c echo.Context) error {
	p, ok := h.metricsParams(c)
	if !ok {
		return nil
	}
	p.Family = resolve.FamilyFootprint

	res, err := h.metrics.GetFootprint(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("footprint usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MetricsHandler) CVD(c echo.Context) error {
	p, ok := h.metricsParams(c)
	if !ok {
		return nil
	}
	p.Family = resolve.FamilyCVD

	res, err := h.metrics.GetCVD(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("cvd usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MetricsHandler) BigTrades(c echo.Context) error {
	q, ok := h.bigTradesQuery(c)
	if !ok {
		return nil
	}

	res, err := h.bigTrades.GetEvents(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("big-trades usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// metricsParams parses a metrics query. The second return is false when a
// 4xx response was already written.
func (h *MetricsHandler) metricsParams(c echo.Context) (usecase.GetMetricsParams, bool) {
	req := &models.MetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		_ = xhttp.BadRequestResponse(c, verr)
		return usecase.GetMetricsParams{}, false
	}
	sess, from, to, err := parseRange(req.Session, req.From, req.To)
	if err != nil {
		_ = xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		return usecase.GetMetricsParams{}, false
	}

	p := usecase.GetMetricsParams{
		InstrumentID: req.Instrument,
		Session:      sess,
		From:         from,
		To:           to,
	}
	if req.Mode != "" {
		mode, err := snapshot.ParseSourceMode(req.Mode)
		if err != nil {
			_ = xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
			return usecase.GetMetricsParams{}, false
		}
		p.Mode = mode
	}
	return p, true
}

// bigTradesQuery parses a big-trades query. The second return is false when a
// 4xx response was already written.
func (h *MetricsHandler) bigTradesQuery(c echo.Context) (bigtrades.Query, bool) {
	req := &models.BigTradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		_ = xhttp.BadRequestResponse(c, verr)
		return bigtrades.Query{}, false
	}
	sess, from, to, err := parseRange(req.Session, req.From, req.To)
	if err != nil {
		_ = xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		return bigtrades.Query{}, false
	}
	up, err := bigtrades.ParseUpstream(req.Upstream)
	if err != nil {
		_ = xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		return bigtrades.Query{}, false
	}

	q := bigtrades.Query{
		InstrumentID: req.Instrument,
		Session:      sess,
		Start:        from,
		End:          to,
		Upstream:     up,
	}
	if req.Method != "" {
		th, err := thresholdOverride(req)
		if err != nil {
			_ = xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
			return bigtrades.Query{}, false
		}
		q.Threshold = &th
	}
	return q, true
}

// thresholdOverride builds an ad-hoc threshold from request params, falling
// back to the standard defaults for unset fields.
func thresholdOverride(req *models.BigTradesRequest) (snapshot.Threshold, error) {
	method, err := snapshot.ParseThresholdMethod(req.Method)
	if err != nil {
		return snapshot.Threshold{}, err
	}
	th := snapshot.Threshold{
		Method:     method,
		MinSize:    req.MinSize,
		Pct:        req.Pct,
		Z:          req.Z,
		WindowDays: req.WindowDays,
	}
	if th.MinSize == 0 {
		th.MinSize = 50
	}
	if th.Pct == 0 {
		th.Pct = 99.0
	}
	if th.Z == 0 {
		th.Z = 2.5
	}
	if th.WindowDays == 0 {
		th.WindowDays = 63
	}
	return th, nil
}

func parseRange(session, from, to string) (models.Session, models.Date, models.Date, error) {
	sess, err := models.ParseSession(session)
	if err != nil {
		return "", "", "", err
	}
	f, err := models.ParseDate(from)
	if err != nil {
		return "", "", "", err
	}
	t, err := models.ParseDate(to)
	if err != nil {
		return "", "", "", err
	}
	return sess, f, t, nil
}
