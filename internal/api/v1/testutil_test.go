package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/datagate-io/datagate/internal/domain"
	"github.com/datagate-io/datagate/internal/gateway"
	"github.com/datagate-io/datagate/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject user identity into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock AgentRepository
// ---------------------------------------------------------------------------

type mockAgentRepo struct {
	createFunc      func(ctx context.Context, a *domain.Agent) error
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	updateFunc      func(ctx context.Context, a *domain.Agent) error
	deleteFunc      func(ctx context.Context, ownerID, id uuid.UUID) error
	listByOwnerFunc func(ctx context.Context, ownerID uuid.UUID) ([]*domain.Agent, error)
}

func (m *mockAgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	return m.createFunc(ctx, a)
}

func (m *mockAgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockAgentRepo) Update(ctx context.Context, a *domain.Agent) error {
	return m.updateFunc(ctx, a)
}

func (m *mockAgentRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return m.deleteFunc(ctx, ownerID, id)
}

func (m *mockAgentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Agent, error) {
	return m.listByOwnerFunc(ctx, ownerID)
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	recordFunc      func(ctx context.Context, e *domain.AuditEntry) error
	listByAgentFunc func(ctx context.Context, userID, agentID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
	listByUserFunc  func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) Record(ctx context.Context, e *domain.AuditEntry) error {
	return m.recordFunc(ctx, e)
}

func (m *mockAuditRepo) ListByAgent(ctx context.Context, userID, agentID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByAgentFunc(ctx, userID, agentID, limit, offset)
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByUserFunc(ctx, userID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock ToolGateway
// ---------------------------------------------------------------------------

type mockGateway struct {
	invokeFunc func(ctx context.Context, call gateway.ToolCall) *gateway.ToolResponse
}

func (m *mockGateway) Invoke(ctx context.Context, call gateway.ToolCall) *gateway.ToolResponse {
	return m.invokeFunc(ctx, call)
}

// ---------------------------------------------------------------------------
// Mock PolicyInvalidator
// ---------------------------------------------------------------------------

type mockInvalidator struct {
	invalidated []uuid.UUID
}

func (m *mockInvalidator) Invalidate(_ context.Context, agentID uuid.UUID) {
	m.invalidated = append(m.invalidated, agentID)
}
