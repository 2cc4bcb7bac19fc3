package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/services"
	"github.com/upb/leads-guard/utils"
	"go.uber.org/zap"
)

// AuditReader is the read side of the audit store
type AuditReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error)
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error)
}

// auditListParams are the query parameters of GET /api/v1/audit/logs
type auditListParams struct {
	Outcome string `json:"outcome" validate:"omitempty,oneof=executed blocked failed"`
	Action  string `json:"action" validate:"omitempty,oneof=query view_my_leads view_team_leads describe_table sample_columns"`
	Limit   int    `json:"limit" validate:"gte=0,lte=500"`
	Offset  int    `json:"offset" validate:"gte=0"`
}

// AuditHandler serves audit records to admins
type AuditHandler struct {
	records AuditReader
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(records AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		records: records,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/audit/logs
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter models.AuditFilter
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			_ = utils.WriteBadRequest(w, "user_id must be a positive integer", nil)
			return
		}
		filter.UserID = id
	}

	params := auditListParams{
		Outcome: q.Get("outcome"),
		Action:  q.Get("action"),
	}
	var err error
	if params.Limit, err = utils.QueryInt(r, "limit", 0); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if params.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(params); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	filter.Outcome = models.AuditOutcome(params.Outcome)
	filter.Action = models.AuditAction(params.Action)
	filter.Limit = params.Limit
	filter.Offset = params.Offset

	records, err := h.records.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list audit records", err), h.logger)
		return
	}
	if records == nil {
		records = []*models.AuditRecord{}
	}

	_ = utils.WriteOK(w, records)
}

// HandleGet handles GET /api/v1/audit/logs/{id}
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "id must be a UUID", nil)
		return
	}

	record, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			HandleServiceError(w, services.ErrAuditLogNotFound, h.logger)
			return
		}
		HandleServiceError(w, services.WrapInternal("failed to get audit record", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, record)
}
