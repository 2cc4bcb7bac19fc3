package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/leads-guard/utils"
	"go.uber.org/zap"
)

// HealthChecker reports whether a dependency can serve requests
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AuditHealth reports whether audit records are being persisted
type AuditHealth interface {
	Health() error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      HealthChecker
	auditor AuditHealth
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db HealthChecker, auditor AuditHealth, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		auditor: auditor,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz. Always 200 while the process is up.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz. Reads of lead data are not served
// while audit writes are failing, so the audit check gates readiness too.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.db == nil {
		checks["database"] = "not_initialized"
		ready = false
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	if h.auditor == nil {
		checks["audit"] = "not_initialized"
		ready = false
	} else if err := h.auditor.Health(); err != nil {
		h.logger.Warn("audit health check failed", zap.Error(err))
		checks["audit"] = "unhealthy"
		ready = false
	} else {
		checks["audit"] = "healthy"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
