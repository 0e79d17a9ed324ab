package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentmall/gateway/internal/repositories"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler answers liveness/readiness probes. It bypasses the envelope
// contract so load balancers can call it with a bare GET.
type HealthHandler struct {
	health repositories.HealthRepository
}

// NewHealthHandler constructs the probe handler.
func NewHealthHandler(health repositories.HealthRepository) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["reason"] = "storage unreachable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
