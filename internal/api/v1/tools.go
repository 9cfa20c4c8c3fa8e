package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/datagate-io/datagate/internal/gateway"
	"github.com/datagate-io/datagate/internal/server/middleware"
)

type InvokeToolInput struct {
	Body struct {
		AgentID uuid.UUID        `json:"agent_id" doc:"Agent the tool call is issued for"`
		Tool    string           `json:"tool" minLength:"1" maxLength:"100" doc:"Tool name selected by the model"`
		Args    gateway.ToolArgs `json:"arguments,omitempty" doc:"Tool arguments as emitted by the model"`
		CallID  uuid.UUID        `json:"call_id,omitempty" doc:"Optional idempotency key supplied by the orchestration layer"`
	}
}

type InvokeToolOutput struct {
	Body *gateway.ToolResponse
}

// RegisterToolRoutes wires the tool invocation endpoint. The caller identity
// is taken from the authenticated context only; nothing in the body can
// impersonate another user.
func RegisterToolRoutes(api huma.API, gw ToolGateway) {
	huma.Register(api, huma.Operation{
		OperationID: "invoke-tool",
		Method:      http.MethodPost,
		Path:        "/tools/invoke",
		Summary:     "Invoke an agent tool through the data access gateway",
		Tags:        []string{"Tools"},
	}, func(ctx context.Context, input *InvokeToolInput) (*InvokeToolOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		resp := gw.Invoke(ctx, gateway.ToolCall{
			CallID:   input.Body.CallID,
			AgentID:  input.Body.AgentID,
			CallerID: userID,
			Tool:     input.Body.Tool,
			Args:     input.Body.Args,
		})

		// Denials and execution failures are part of the envelope, not HTTP
		// errors: the orchestration layer surfaces them conversationally.
		return &InvokeToolOutput{Body: resp}, nil
	})
}
