package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/datagate-io/datagate/internal/api/v1"
	"github.com/datagate-io/datagate/internal/domain"
)

func newAuditTestAPI(t *testing.T) (humatest.TestAPI, *mockAuditRepo) {
	t.Helper()

	_, api := humatest.New(t)
	repo := &mockAuditRepo{}
	v1.RegisterAuditRoutes(api, repo)

	return api, repo
}

func makeAuditEntry(userID, agentID uuid.UUID) *domain.AuditEntry {
	return &domain.AuditEntry{
		CallID:        uuid.New(),
		AgentID:       agentID,
		UserID:        userID,
		Tool:          "query_collection",
		Collection:    "finance_transactions",
		ParamsSummary: `{"tool":"query_collection","collection":"finance_transactions"}`,
		Outcome:       domain.OutcomeAllowed,
		RowCount:      3,
		DurationMS:    12,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestListAudit(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	agentID := uuid.New()

	t.Run("list_by_user", func(t *testing.T) {
		t.Parallel()

		api, repo := newAuditTestAPI(t)
		e1 := makeAuditEntry(userID, agentID)
		e2 := makeAuditEntry(userID, agentID)

		repo.listByUserFunc = func(_ context.Context, uid uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return []*domain.AuditEntry{e1, e2}, nil
		}

		resp := api.GetCtx(userCtx(userID), "/audit")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.AuditEntry
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Len(t, body, 2)
		assert.Equal(t, e1.CallID, body[0].CallID)
	})

	t.Run("list_by_agent", func(t *testing.T) {
		t.Parallel()

		api, repo := newAuditTestAPI(t)
		entry := makeAuditEntry(userID, agentID)

		repo.listByAgentFunc = func(_ context.Context, uid, aid uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, agentID, aid)
			assert.Equal(t, 20, limit)
			assert.Equal(t, 40, offset)
			return []*domain.AuditEntry{entry}, nil
		}

		resp := api.GetCtx(userCtx(userID), "/audit?agent_id="+agentID.String()+"&limit=20&offset=40")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.AuditEntry
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, domain.OutcomeAllowed, body[0].Outcome)
	})

	t.Run("limit_out_of_range", func(t *testing.T) {
		t.Parallel()

		api, _ := newAuditTestAPI(t)

		resp := api.GetCtx(userCtx(userID), "/audit?limit=1000")

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		api, _ := newAuditTestAPI(t)

		resp := api.GetCtx(context.Background(), "/audit")

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		api, repo := newAuditTestAPI(t)

		repo.listByUserFunc = func(_ context.Context, _ uuid.UUID, _, _ int) ([]*domain.AuditEntry, error) {
			return nil, errors.New("connection refused")
		}

		resp := api.GetCtx(userCtx(userID), "/audit")

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}
