package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datagate-io/datagate/internal/domain"
)

// AuditRepo is append-only: it exposes Record and reads, nothing else.
// call_id is the primary key, so a redelivered entry is a no-op rather than
// a duplicate record.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tool_call_audit (call_id, agent_id, user_id, tool, collection, params_summary, outcome, error_kind, row_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (call_id) DO NOTHING`,
		entry.CallID, entry.AgentID, entry.UserID, entry.Tool, entry.Collection,
		entry.ParamsSummary, entry.Outcome, entry.ErrorKind, entry.RowCount,
		entry.DurationMS, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", err)
	}

	return nil
}

func (r *AuditRepo) ListByAgent(ctx context.Context, userID, agentID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT call_id, agent_id, user_id, tool, collection, params_summary, outcome, error_kind, row_count, duration_ms, created_at
		 FROM tool_call_audit WHERE user_id = $1 AND agent_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, agentID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByAgent: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, "auditRepo.ListByAgent")
}

func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT call_id, agent_id, user_id, tool, collection, params_summary, outcome, error_kind, row_count, duration_ms, created_at
		 FROM tool_call_audit WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, "auditRepo.ListByUser")
}

func scanAuditEntries(rows pgx.Rows, caller string) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry

		if err := rows.Scan(
			&e.CallID, &e.AgentID, &e.UserID, &e.Tool, &e.Collection,
			&e.ParamsSummary, &e.Outcome, &e.ErrorKind, &e.RowCount,
			&e.DurationMS, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
