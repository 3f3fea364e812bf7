package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/service"
)

// StatusSource reports the engine's runtime state.
type StatusSource interface {
	Status() service.Status
}

// StatusHandler serves the process mode and, when an engine runs, its
// sync status.
type StatusHandler struct {
	Mode      string
	StartedAt time.Time
	engine    StatusSource
}

// NewStatusHandler creates a StatusHandler. engine may be nil in store mode.
func NewStatusHandler(mode string, startedAt time.Time, engine StatusSource) *StatusHandler {
	return &StatusHandler{Mode: mode, StartedAt: startedAt, engine: engine}
}

// GetStatus responds with the process mode, uptime and engine status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":           h.Mode,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	}
	if h.engine != nil {
		body["engine"] = h.engine.Status()
	}
	writeJSON(w, http.StatusOK, body)
}
