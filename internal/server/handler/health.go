package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 3 * time.Second

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	checks []domain.DependencyCheck
	logger *slog.Logger
	now    func() time.Time
}

// NewHealthHandler creates a HealthHandler. checks are run by Readiness.
func NewHealthHandler(logger *slog.Logger, checks ...domain.DependencyCheck) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logHandler(logger, "health"), now: time.Now}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Readiness runs the dependency checks concurrently and reports each one as
// "ok" or "unavailable". Any failure answers 503. Failure details are
// logged, not returned.
// GET /api/ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	results := make([]string, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := c.Check(ctx); err != nil {
				h.logger.WarnContext(ctx, "readiness check failed",
					slog.String("dependency", c.Name),
					slog.String("error", err.Error()),
				)
				results[i] = "unavailable"
				return nil
			}
			results[i] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for i, c := range h.checks {
		checks[c.Name] = results[i]
		if results[i] != "ok" {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
