package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datagate-io/datagate/internal/domain"
)

// Store holds the audit database pool. The audit log lives in its own
// database so it stays independent of the document store and cannot be
// bypassed or mutated through it.
type Store struct {
	pool  *pgxpool.Pool
	audit *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	err = ensureSchema(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: %w", err)
	}

	return &Store{
		pool:  pool,
		audit: NewAuditRepo(pool),
	}, nil
}

// ensureSchema creates the audit table if it does not exist. The table has
// no UPDATE or DELETE path anywhere in this codebase.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tool_call_audit (
			call_id        uuid PRIMARY KEY,
			agent_id       uuid NOT NULL,
			user_id        uuid NOT NULL,
			tool           text NOT NULL,
			collection     text NOT NULL DEFAULT '',
			params_summary text NOT NULL DEFAULT '',
			outcome        text NOT NULL,
			error_kind     text NOT NULL DEFAULT '',
			row_count      integer NOT NULL DEFAULT 0,
			duration_ms    bigint NOT NULL DEFAULT 0,
			created_at     timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS tool_call_audit_user_created_idx
			ON tool_call_audit (user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS tool_call_audit_agent_created_idx
			ON tool_call_audit (agent_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Audit() domain.AuditRepository { return s.audit }
