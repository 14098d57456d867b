package handlers

import (
	"net/http"
	"time"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/platform/httpx"
	"github.com/panaven/api/internal/repositories"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	probe   *repositories.HealthProbe
	started time.Time
	now     func() time.Time
}

// NewHealthHandlers builds the probe handlers. A nil probe reports ready unconditionally.
func NewHealthHandlers(probe *repositories.HealthProbe) *HealthHandlers {
	return &HealthHandlers{probe: probe, started: time.Now(), now: time.Now}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz probes backing services. Any error status answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		h.Healthz(w, r)
		return
	}
	report := h.probe.Collect(r.Context())

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = map[string]any{
			"status":     check.Status,
			"detail":     check.Detail,
			"latency_ms": check.Latency.Milliseconds(),
		}
	}
	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{
		"status":       report.Status,
		"checks":       checks,
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
	})
}
