// Package access runs every read of lead data. A read is screened, rewritten
// for the caller's role, executed in a read-only transaction and audited,
// in that order. Refusals are audited too and never reach the executor.
package access

import (
	"context"
	"fmt"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/leads-guard/internal/observability"
	"github.com/upb/leads-guard/internal/policy"
	intprompt "github.com/upb/leads-guard/internal/prompt"
	"github.com/upb/leads-guard/internal/query"
	"github.com/upb/leads-guard/internal/rewrite"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/services"
	"github.com/upb/leads-guard/services/audit"
	"go.uber.org/zap"
)

const (
	defaultMyLeadsLimit   = 20
	defaultTeamLeadsLimit = 50
	columnSampleRows      = 3
)

var (
	myLeadsColumns   = []string{"id", "name", "email", "company", "status", "source", "value", "created_at"}
	teamLeadsColumns = []string{"id", "name", "email", "company", "status", "owner_id", "created_at"}
	newestFirst      = []query.Order{{Column: "created_at", Desc: true}}
)

// Screener checks free text before it is acted on
type Screener interface {
	Screen(ctx context.Context, message string) (intprompt.Verdict, error)
}

// Config bounds a single read
type Config struct {
	MaxRows int
	Timeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxRows: 1000,
		Timeout: 10 * time.Second,
	}
}

// Service is the only path from a caller to lead data
type Service struct {
	screen    Screener
	catalog   *policy.Catalog
	rewriter  *rewrite.Rewriter
	schema    repositories.SchemaRepository
	leads     repositories.LeadRepository
	txManager repositories.TransactionManager
	auditor   audit.Auditor
	config    Config
	logger    *zap.Logger
}

// NewService creates the access service
func NewService(
	screen Screener,
	catalog *policy.Catalog,
	schema repositories.SchemaRepository,
	leads repositories.LeadRepository,
	txManager repositories.TransactionManager,
	auditor audit.Auditor,
	config Config,
	logger *zap.Logger,
) *Service {
	def := DefaultConfig()
	if config.MaxRows <= 0 {
		config.MaxRows = def.MaxRows
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Service{
		screen:    screen,
		catalog:   catalog,
		rewriter:  rewrite.New(catalog),
		schema:    schema,
		leads:     leads,
		txManager: txManager,
		auditor:   auditor,
		config:    config,
		logger:    logger,
	}
}

// QueryRequest is one agent tool call against the data store
type QueryRequest struct {
	Message string
	Plan    query.Plan
	Action  models.AuditAction
}

// QueryResult is a sanitized read plus a description of what was changed
type QueryResult struct {
	Columns        []string                 `json:"columns"`
	Rows           []map[string]interface{} `json:"rows"`
	RowCount       int                      `json:"row_count"`
	Predicate      string                   `json:"predicate,omitempty"`
	Changes        string                   `json:"changes"`
	RemovedColumns []string                 `json:"removed_columns,omitempty"`
	ScreenWarning  string                   `json:"screen_warning,omitempty"`
	AuditID        string                   `json:"audit_id"`
}

// Query screens req.Message, then rewrites and executes req.Plan for identity.
func (s *Service) Query(ctx context.Context, identity policy.Identity, req QueryRequest) (*QueryResult, error) {
	action := req.Action
	if action == "" {
		action = models.AuditActionQuery
	}
	rec := s.newRecord(ctx, identity, action, req.Plan.Table).
		WithQuery(intprompt.RedactSensitive(req.Message))

	verdict, err := s.screen.Screen(ctx, req.Message)
	if err != nil {
		return nil, s.refuse(rec, identity, err)
	}

	result, err := s.run(ctx, identity, req.Plan, rec)
	if err != nil {
		return nil, err
	}
	if verdict.Rejected {
		result.ScreenWarning = verdict.Reason
	}
	return result, nil
}

// MyLeads returns the caller's most recent leads
func (s *Service) MyLeads(ctx context.Context, identity policy.Identity, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = defaultMyLeadsLimit
	}
	plan := query.Plan{
		Table:   "leads",
		Columns: append([]string(nil), myLeadsColumns...),
		OrderBy: newestFirst,
		Limit:   limit,
	}
	rec := s.newRecord(ctx, identity, models.AuditActionViewMyLeads, plan.Table)
	return s.run(ctx, identity, plan, rec)
}

// TeamLeads returns the most recent leads across the team. Managers and
// admins only.
func (s *Service) TeamLeads(ctx context.Context, identity policy.Identity, limit int) (*QueryResult, error) {
	rec := s.newRecord(ctx, identity, models.AuditActionViewTeamLeads, "leads")

	role, err := policy.ParseRole(identity.Role)
	if err != nil {
		return nil, s.refuse(rec, identity, err)
	}
	if role != policy.RoleManager && role != policy.RoleAdmin {
		return nil, s.refuse(rec, identity,
			services.NewDomainError(services.ErrorTypeForbidden, "team leads are available to managers and admins", nil))
	}

	if limit <= 0 {
		limit = defaultTeamLeadsLimit
	}
	plan := query.Plan{
		Table:   "leads",
		Columns: append([]string(nil), teamLeadsColumns...),
		OrderBy: newestFirst,
		Limit:   limit,
	}
	return s.run(ctx, identity, plan, rec)
}

// TableSchema returns the columns of table the caller's role may see
func (s *Service) TableSchema(ctx context.Context, identity policy.Identity, table string) (*models.TableSchema, error) {
	rec := s.newRecord(ctx, identity, models.AuditActionDescribeTable, table)

	profile, err := s.admit(identity, table)
	if err != nil {
		return nil, s.refuse(rec, identity, err)
	}

	cols, err := s.schema.DescribeTable(ctx, table)
	if err != nil {
		return nil, s.fail(rec, identity, err)
	}

	visible := make([]models.ColumnInfo, 0, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if profile.CanSee(c.Name) {
			visible = append(visible, c)
			names = append(names, c.Name)
		}
	}
	if len(visible) == 0 {
		return nil, s.refuse(rec, identity, fmt.Errorf("%w: role %s on table %s", rewrite.ErrNoAccessibleColumns, profile.Role, table))
	}

	rec.WithRewrite(names, "", fmt.Sprintf("%d of %d columns visible", len(visible), len(cols)))
	s.auditor.Record(rec.Executed(nil))
	return &models.TableSchema{Table: table, Columns: visible}, nil
}

// ColumnSamples returns each visible column's type with a few sample values
// drawn from rows the caller may read.
func (s *Service) ColumnSamples(ctx context.Context, identity policy.Identity, table string) ([]models.ColumnSample, error) {
	rec := s.newRecord(ctx, identity, models.AuditActionSampleColumns, table)

	if _, err := s.admit(identity, table); err != nil {
		return nil, s.refuse(rec, identity, err)
	}

	cols, err := s.schema.DescribeTable(ctx, table)
	if err != nil {
		return nil, s.fail(rec, identity, err)
	}
	types := make(map[string]string, len(cols))
	for _, c := range cols {
		types[c.Name] = c.DataType
	}

	plan := query.Plan{Table: table, AllColumns: true, Limit: columnSampleRows}
	result, err := s.run(ctx, identity, plan, rec)
	if err != nil {
		return nil, err
	}

	samples := make([]models.ColumnSample, 0, len(result.Columns))
	for _, name := range result.Columns {
		cs := models.ColumnSample{Name: name, DataType: types[name], Samples: []interface{}{}}
		for _, row := range result.Rows {
			if v := row[name]; v != nil {
				cs.Samples = append(cs.Samples, v)
			}
		}
		samples = append(samples, cs)
	}
	return samples, nil
}

// admit resolves the caller's profile and checks the table allow-list
func (s *Service) admit(identity policy.Identity, table string) (policy.Profile, error) {
	profile, err := s.catalog.ProfileFor(identity.Role)
	if err != nil {
		return policy.Profile{}, err
	}
	if _, err := s.catalog.Table(table); err != nil {
		return policy.Profile{}, err
	}
	return profile, nil
}

type execution struct {
	rewrite *rewrite.Result
	rows    *models.ResultSet
}

// run rewrites and executes plan for identity and audits the outcome.
// The schema lookup and the select share one read-only snapshot.
func (s *Service) run(ctx context.Context, identity policy.Identity, plan query.Plan, rec *models.AuditRecord) (*QueryResult, error) {
	if _, err := s.admit(identity, plan.Table); err != nil {
		return nil, s.refuse(rec, identity, err)
	}
	plan.Limit = s.clampLimit(plan.Limit)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var rewritten *rewrite.Result
	exec, err := services.InReadOnly(ctx, s.txManager, func(ctx context.Context) (execution, error) {
		cols, err := s.schema.ColumnsOf(ctx, plan.Table)
		if err != nil {
			return execution{}, err
		}
		res, err := s.rewriter.Rewrite(identity, plan, cols)
		if err != nil {
			return execution{}, err
		}
		rewritten = res
		rows, err := s.leads.Select(ctx, res.Plan)
		if err != nil {
			return execution{}, err
		}
		return execution{rewrite: res, rows: rows}, nil
	})

	if rewritten != nil {
		rec.WithRewrite(rewritten.Plan.Columns, query.Describe(rewritten.Plan.Where), rewritten.Description())
	}
	if err != nil {
		derr := toDomainError(err)
		if refused(derr) {
			return nil, s.refuse(rec, identity, derr)
		}
		return nil, s.fail(rec, identity, derr)
	}

	ids := exec.rows.RecordIDs()
	s.auditor.Record(rec.Executed(ids))
	observability.ObserveRewrite(identity.Role, string(models.AuditOutcomeExecuted), exec.rewrite.PredicateAdded)

	s.logger.Info("lead data read",
		zap.String("request_id", rec.RequestID),
		zap.Int64("user_id", identity.UserID),
		zap.String("role", identity.Role),
		zap.String("action", string(rec.Action)),
		zap.Int("rows", exec.rows.Len()),
		zap.String("changes", rec.Changes))

	return &QueryResult{
		Columns:        exec.rows.Columns,
		Rows:           exec.rows.Rows,
		RowCount:       exec.rows.Len(),
		Predicate:      rec.Predicate,
		Changes:        rec.Changes,
		RemovedColumns: exec.rewrite.RemovedColumns,
		AuditID:        rec.ID.String(),
	}, nil
}

// refuse audits a blocked access and returns the mapped error
func (s *Service) refuse(rec *models.AuditRecord, identity policy.Identity, err error) error {
	derr := toDomainError(err)
	s.auditor.Record(rec.Blocked(derr.Error()))
	observability.ObserveRewrite(identity.Role, string(services.GetErrorType(derr)), false)
	s.logger.Info("access refused",
		zap.String("request_id", rec.RequestID),
		zap.Int64("user_id", identity.UserID),
		zap.String("role", identity.Role),
		zap.String("action", string(rec.Action)),
		zap.String("table", rec.TableName),
		zap.Error(derr))
	return derr
}

// fail audits an access that was admitted but errored
func (s *Service) fail(rec *models.AuditRecord, identity policy.Identity, err error) error {
	derr := toDomainError(err)
	s.auditor.Record(rec.Failed(derr.Error()))
	observability.ObserveRewrite(identity.Role, string(models.AuditOutcomeFailed), false)
	s.logger.Error("access failed",
		zap.String("request_id", rec.RequestID),
		zap.Int64("user_id", identity.UserID),
		zap.String("action", string(rec.Action)),
		zap.String("table", rec.TableName),
		zap.Error(err))
	return derr
}

func (s *Service) newRecord(ctx context.Context, identity policy.Identity, action models.AuditAction, table string) *models.AuditRecord {
	return models.NewAuditRecord(action, table).
		WithUser(identity.UserID, identity.Username, identity.Role).
		WithRequest(chimw.GetReqID(ctx))
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.config.MaxRows {
		return s.config.MaxRows
	}
	return limit
}
