package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/datagate-io/datagate/internal/domain"
	"github.com/datagate-io/datagate/internal/gateway"
	"github.com/datagate-io/datagate/internal/server/middleware"
)

// defaultTools is the allowlist applied when an agent is created through the
// collections shortcut without an explicit policy.
var defaultTools = []string{
	gateway.ToolQueryCollection,
	gateway.ToolAnalyzeData,
	gateway.ToolGetCollectionSchema,
}

type CreateAgentInput struct {
	Body struct {
		Name        string               `json:"name" minLength:"1" maxLength:"100" doc:"Agent display name"`
		Description string               `json:"description,omitempty" maxLength:"500" doc:"Agent description"`
		Collections []string             `json:"collections,omitempty" doc:"Catalog collections to grant with their stock field sets"`
		Policy      *domain.AccessPolicy `json:"policy,omitempty" doc:"Explicit access policy; overrides collections"`
	}
}

type CreateAgentOutput struct {
	Body *domain.Agent
}

type GetAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type GetAgentOutput struct {
	Body *domain.Agent
}

type ListAgentsInput struct{}

type ListAgentsOutput struct {
	Body []*domain.Agent
}

type UpdateAgentInput struct {
	ID   uuid.UUID `path:"id" doc:"Agent ID"`
	Body struct {
		Name        string               `json:"name" minLength:"1" maxLength:"100" doc:"Agent display name"`
		Description string               `json:"description,omitempty" maxLength:"500" doc:"Agent description"`
		Policy      *domain.AccessPolicy `json:"policy" doc:"Replacement access policy"`
	}
}

type UpdateAgentOutput struct {
	Body *domain.Agent
}

type DeleteAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type DeleteAgentOutput struct{}

func RegisterAgentRoutes(api huma.API, agents domain.AgentRepository, policies PolicyInvalidator) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-agent",
		Method:        http.MethodPost,
		Path:          "/agents",
		Summary:       "Create an agent with its access policy",
		Tags:          []string{"Agents"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateAgentInput) (*CreateAgentOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		pol, err := buildPolicy(input.Body.Policy, input.Body.Collections)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		now := time.Now().UTC()
		agent := &domain.Agent{
			ID:          uuid.New(),
			OwnerID:     userID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Policy:      *pol,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := agents.Create(ctx, agent); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("agent already exists")
			}
			return nil, huma.Error500InternalServerError("failed to create agent", err)
		}

		return &CreateAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{id}",
		Summary:     "Get an agent by ID",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *GetAgentInput) (*GetAgentOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		agent, err := agents.GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to get agent", err)
		}
		// Foreign agents are reported as missing, not forbidden.
		if agent.OwnerID != userID {
			return nil, huma.Error404NotFound("agent not found")
		}

		return &GetAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List the caller's agents",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, _ *ListAgentsInput) (*ListAgentsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		list, err := agents.ListByOwner(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list agents", err)
		}

		return &ListAgentsOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-agent",
		Method:      http.MethodPut,
		Path:        "/agents/{id}",
		Summary:     "Replace an agent's name, description, and access policy",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *UpdateAgentInput) (*UpdateAgentOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		if input.Body.Policy == nil {
			return nil, huma.Error422UnprocessableEntity("policy is required")
		}
		if err := input.Body.Policy.Validate(); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		existing, err := agents.GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to get agent", err)
		}
		if existing.OwnerID != userID {
			return nil, huma.Error404NotFound("agent not found")
		}

		existing.Name = input.Body.Name
		existing.Description = input.Body.Description
		existing.Policy = *input.Body.Policy
		existing.UpdatedAt = time.Now().UTC()

		if err := agents.Update(ctx, existing); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to update agent", err)
		}

		policies.Invalidate(ctx, existing.ID)

		return &UpdateAgentOutput{Body: existing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-agent",
		Method:        http.MethodDelete,
		Path:          "/agents/{id}",
		Summary:       "Delete an agent",
		Tags:          []string{"Agents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteAgentInput) (*DeleteAgentOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		if err := agents.Delete(ctx, userID, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete agent", err)
		}

		policies.Invalidate(ctx, input.ID)

		return &DeleteAgentOutput{}, nil
	})
}

// buildPolicy resolves the request's policy. Explicit policies win; the
// collections shortcut expands catalog names into stock grants. Malformed
// input is rejected, never defaulted.
func buildPolicy(explicit *domain.AccessPolicy, collections []string) (*domain.AccessPolicy, error) {
	if explicit != nil {
		if err := explicit.Validate(); err != nil {
			return nil, err
		}
		return explicit, nil
	}

	if len(collections) == 0 {
		return nil, errors.New("either a policy or at least one collection is required")
	}

	pol := &domain.AccessPolicy{
		AllowedTools: append([]string(nil), defaultTools...),
	}
	for _, name := range collections {
		grant, ok := domain.DefaultGrant(name)
		if !ok {
			return nil, errors.New("unknown collection: " + name)
		}
		pol.Grants = append(pol.Grants, grant)
	}

	if err := pol.Validate(); err != nil {
		return nil, err
	}
	return pol, nil
}
