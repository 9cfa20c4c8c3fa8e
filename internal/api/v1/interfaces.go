package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/datagate-io/datagate/internal/gateway"
)

// ToolGateway abstracts tool invocation for handler testing.
// *gateway.Gateway satisfies this interface.
type ToolGateway interface {
	Invoke(ctx context.Context, call gateway.ToolCall) *gateway.ToolResponse
}

// PolicyInvalidator drops a cached policy after an edit so narrowings take
// effect immediately instead of waiting out the cache TTL.
// *policy.Resolver satisfies this interface.
type PolicyInvalidator interface {
	Invalidate(ctx context.Context, agentID uuid.UUID)
}
