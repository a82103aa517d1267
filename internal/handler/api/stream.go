package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pcashcroft/backtest/internal/domain/models"
	xlogger "github.com/pcashcroft/backtest/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const streamChunkSize = 500

// streamFrame is one websocket message on the big-trades stream.
type streamFrame struct {
	Type   string                 `json:"type"` // events, done, error
	Events []models.BigTradeEvent `json:"events,omitempty"`
	Count  int                    `json:"count,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// BigTradesStream computes events for the query parameters and streams them
// over a websocket in chronological chunks, closing with a done frame. Large
// ranges stay responsive on the client side without a giant response body.
func (h *MetricsHandler) BigTradesStream(c echo.Context) error {
	q, ok := h.bigTradesQuery(c)
	if !ok {
		return nil
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	res, err := h.bigTrades.GetEvents(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("big-trades stream error", xlogger.Error(err))
		_ = ws.WriteJSON(streamFrame{Type: "error", Error: err.Error()})
		return nil
	}

	for start := 0; start < len(res.Events); start += streamChunkSize {
		end := start + streamChunkSize
		if end > len(res.Events) {
			end = len(res.Events)
		}
		if err := ws.WriteJSON(streamFrame{Type: "events", Events: res.Events[start:end]}); err != nil {
			return nil
		}
	}
	_ = ws.WriteJSON(streamFrame{Type: "done", Count: res.Count})
	return nil
}
