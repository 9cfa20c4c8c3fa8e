package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/datagate-io/datagate/internal/domain"
	"github.com/datagate-io/datagate/internal/server/middleware"
)

type ListAuditInput struct {
	AgentID uuid.UUID `query:"agent_id" required:"false" doc:"Restrict to one agent"`
	Limit   int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset  int       `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEntry
}

// RegisterAuditRoutes wires the read-only audit trail. There is no write,
// update, or delete surface here: entries are produced by the gateway only.
func RegisterAuditRoutes(api huma.API, audit domain.AuditRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-entries",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List the caller's tool call audit trail",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		var (
			entries []*domain.AuditEntry
			err     error
		)
		if input.AgentID != uuid.Nil {
			entries, err = audit.ListByAgent(ctx, userID, input.AgentID, input.Limit, input.Offset)
		} else {
			entries, err = audit.ListByUser(ctx, userID, input.Limit, input.Offset)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list audit entries", err)
		}

		return &ListAuditOutput{Body: entries}, nil
	})
}
