package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditOutcome is the terminal classification of a tool invocation.
type AuditOutcome string

const (
	OutcomeAllowed AuditOutcome = "allowed"
	OutcomeDenied  AuditOutcome = "denied"
	OutcomeError   AuditOutcome = "error"
)

// AuditEntry records one tool invocation. Entries are immutable once written
// and are recorded exactly once per gateway call, including denials. CallID
// is the deduplication key: a retried write of the same call must not
// produce a second record.
type AuditEntry struct {
	CallID        uuid.UUID    `json:"call_id"`
	AgentID       uuid.UUID    `json:"agent_id"`
	UserID        uuid.UUID    `json:"user_id"`
	Tool          string       `json:"tool"`
	Collection    string       `json:"collection,omitempty"`
	ParamsSummary string       `json:"params_summary"`
	Outcome       AuditOutcome `json:"outcome"`
	ErrorKind     ErrorKind    `json:"error_kind,omitempty"`
	RowCount      int          `json:"row_count"`
	DurationMS    int64        `json:"duration_ms"`
	CreatedAt     time.Time    `json:"created_at"`
}

// AuditRepository is append-only. No update or delete capability is exposed
// to any caller through this interface.
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByAgent(ctx context.Context, userID, agentID uuid.UUID, limit, offset int) ([]*AuditEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*AuditEntry, error)
}
