package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of data access being audited
type AuditAction string

const (
	AuditActionQuery         AuditAction = "query"
	AuditActionViewMyLeads   AuditAction = "view_my_leads"
	AuditActionViewTeamLeads AuditAction = "view_team_leads"
	AuditActionDescribeTable AuditAction = "describe_table"
	AuditActionSampleColumns AuditAction = "sample_columns"
)

// AuditOutcome records how an access attempt ended
type AuditOutcome string

const (
	AuditOutcomeExecuted AuditOutcome = "executed"
	AuditOutcomeBlocked  AuditOutcome = "blocked"
	AuditOutcomeFailed   AuditOutcome = "failed"
)

// maxQueryTextLen bounds the query text stored per record.
const maxQueryTextLen = 1000

// AuditRecord is one append-only entry describing a read of lead data, or a
// refusal to read it.
type AuditRecord struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	UserID    int64        `json:"user_id" db:"user_id"`
	Username  string       `json:"username" db:"username"`
	Role      string       `json:"role" db:"role"`
	Action    AuditAction  `json:"action" db:"action"`
	TableName string       `json:"table_name" db:"table_name"`
	Columns   []string     `json:"columns" db:"columns"`     // final column list after rewriting
	Predicate string       `json:"predicate" db:"predicate"` // final predicate, values inlined
	Changes   string       `json:"changes" db:"changes"`     // what the rewrite removed and added
	Outcome   AuditOutcome `json:"outcome" db:"outcome"`
	Reason    string       `json:"reason,omitempty" db:"reason"`
	RecordIDs []int64      `json:"record_ids" db:"record_ids"`
	QueryText string       `json:"query_text" db:"query_text"`
	RequestID string       `json:"request_id" db:"request_id"`
	Timestamp time.Time    `json:"timestamp" db:"timestamp"`
}

// AuditTable is the append-only table AuditRecord rows live in
const AuditTable = "audit_logs"

// NewAuditRecord creates a new AuditRecord instance
func NewAuditRecord(action AuditAction, tableName string) *AuditRecord {
	return &AuditRecord{
		ID:        uuid.New(),
		Action:    action,
		TableName: tableName,
		Timestamp: time.Now().UTC(),
	}
}

// WithUser sets who performed the access
func (a *AuditRecord) WithUser(userID int64, username, role string) *AuditRecord {
	a.UserID = userID
	a.Username = username
	a.Role = role
	return a
}

// WithRequest sets the request correlation id
func (a *AuditRecord) WithRequest(requestID string) *AuditRecord {
	a.RequestID = requestID
	return a
}

// WithQuery sets the executed statement text, truncated for storage
func (a *AuditRecord) WithQuery(text string) *AuditRecord {
	a.QueryText = truncateRunes(text, maxQueryTextLen)
	return a
}

// WithRewrite records the final shape of the query after rewriting
func (a *AuditRecord) WithRewrite(columns []string, predicate, changes string) *AuditRecord {
	a.Columns = columns
	a.Predicate = predicate
	a.Changes = changes
	return a
}

// Executed marks the access as run and records the returned ids
func (a *AuditRecord) Executed(recordIDs []int64) *AuditRecord {
	a.Outcome = AuditOutcomeExecuted
	a.RecordIDs = recordIDs
	return a
}

// Blocked marks the access as refused before execution
func (a *AuditRecord) Blocked(reason string) *AuditRecord {
	a.Outcome = AuditOutcomeBlocked
	a.Reason = reason
	return a
}

// Failed marks the access as attempted but errored
func (a *AuditRecord) Failed(reason string) *AuditRecord {
	a.Outcome = AuditOutcomeFailed
	a.Reason = reason
	return a
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// AuditFilter narrows an audit listing. Zero values are ignored.
type AuditFilter struct {
	UserID  int64
	Outcome AuditOutcome
	Action  AuditAction
	Limit   int
	Offset  int
}
