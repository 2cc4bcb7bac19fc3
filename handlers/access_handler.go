package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/leads-guard/internal/policy"
	"github.com/upb/leads-guard/internal/query"
	"github.com/upb/leads-guard/middleware"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/services"
	"github.com/upb/leads-guard/services/access"
	"github.com/upb/leads-guard/utils"
	"go.uber.org/zap"
)

// AccessService is the read pipeline behind every lead data endpoint
type AccessService interface {
	Query(ctx context.Context, identity policy.Identity, req access.QueryRequest) (*access.QueryResult, error)
	MyLeads(ctx context.Context, identity policy.Identity, limit int) (*access.QueryResult, error)
	TeamLeads(ctx context.Context, identity policy.Identity, limit int) (*access.QueryResult, error)
	TableSchema(ctx context.Context, identity policy.Identity, table string) (*models.TableSchema, error)
	ColumnSamples(ctx context.Context, identity policy.Identity, table string) ([]models.ColumnSample, error)
}

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Message string      `json:"message" validate:"required"`
	Plan    PlanRequest `json:"plan"`
}

// PlanRequest is the JSON form of a single-table read
type PlanRequest struct {
	Table      string         `json:"table" validate:"required,identifier"`
	Columns    []string       `json:"columns" validate:"max=100,dive,identifier"`
	AllColumns bool           `json:"all_columns"`
	Where      *query.Node    `json:"where,omitempty"`
	OrderBy    []OrderRequest `json:"order_by" validate:"max=10,dive"`
	Limit      int            `json:"limit" validate:"gte=0"`
}

// OrderRequest is one ORDER BY term
type OrderRequest struct {
	Column string `json:"column" validate:"required,identifier"`
	Desc   bool   `json:"desc"`
}

// toPlan converts the request into a query plan. The predicate is parsed
// into an expression tree here; no SQL text crosses this boundary.
func (p PlanRequest) toPlan() (query.Plan, error) {
	plan := query.Plan{
		Table:      p.Table,
		Columns:    p.Columns,
		AllColumns: p.AllColumns,
		Limit:      p.Limit,
	}
	for _, o := range p.OrderBy {
		plan.OrderBy = append(plan.OrderBy, query.Order{Column: o.Column, Desc: o.Desc})
	}
	if p.Where != nil {
		where, err := p.Where.Expr()
		if err != nil {
			return query.Plan{}, services.WrapError(services.ErrorTypeValidation, "invalid predicate", err)
		}
		plan.Where = where
	}
	return plan, nil
}

// AccessHandler handles lead data HTTP requests
type AccessHandler struct {
	access AccessService
	logger *zap.Logger
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(access AccessService, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{
		access: access,
		logger: logger,
	}
}

// HandleQuery handles POST /api/v1/query
func (h *AccessHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req QueryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	plan, err := req.Plan.toPlan()
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	result, err := h.access.Query(r.Context(), identity, access.QueryRequest{
		Message: req.Message,
		Plan:    plan,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleMyLeads handles GET /api/v1/leads/mine
func (h *AccessHandler) HandleMyLeads(w http.ResponseWriter, r *http.Request) {
	h.handleLeads(w, r, h.access.MyLeads)
}

// HandleTeamLeads handles GET /api/v1/leads/team
func (h *AccessHandler) HandleTeamLeads(w http.ResponseWriter, r *http.Request) {
	h.handleLeads(w, r, h.access.TeamLeads)
}

func (h *AccessHandler) handleLeads(w http.ResponseWriter, r *http.Request,
	fetch func(context.Context, policy.Identity, int) (*access.QueryResult, error)) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	limit, err := utils.QueryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		_ = utils.WriteBadRequest(w, "limit must be a non-negative integer", nil)
		return
	}

	result, err := fetch(r.Context(), identity, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleTableSchema handles GET /api/v1/schema/{table}
func (h *AccessHandler) HandleTableSchema(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	schema, err := h.access.TableSchema(r.Context(), identity, chi.URLParam(r, "table"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, schema)
}

// HandleColumnSamples handles GET /api/v1/schema/{table}/samples
func (h *AccessHandler) HandleColumnSamples(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	samples, err := h.access.ColumnSamples(r.Context(), identity, chi.URLParam(r, "table"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, samples)
}

func (h *AccessHandler) identity(w http.ResponseWriter, r *http.Request) (policy.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.logger.Error("identity not found in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Authentication required")
	}
	return identity, ok
}
