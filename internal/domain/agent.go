package domain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxLimit is the query limit ceiling applied when a policy does not
// set its own.
const DefaultMaxLimit = 100

// Agent is a configured AI assistant instance. Its access policy is the
// complete description of what the agent may touch: collections, fields,
// filters, and tools. The policy is immutable for the duration of a request
// and is only edited by the owning user.
type Agent struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Policy      AccessPolicy `json:"policy"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// AccessPolicy is the closed capability set of an agent. Absence from any of
// its lists is always a denial, never a default permit.
type AccessPolicy struct {
	Grants       []CollectionGrant `json:"grants"`
	AllowedTools []string          `json:"allowed_tools"`
	MaxLimit     int               `json:"max_limit,omitempty"`
}

// CollectionGrant exposes a single collection. Fields and FilterFields are
// closed lists: a field absent from them can never appear in a projection or
// filter, even when present in the stored document.
type CollectionGrant struct {
	Collection   string   `json:"collection"`
	Fields       []string `json:"fields"`
	FilterFields []string `json:"filter_fields"`
}

// Grant returns the grant for a collection, or nil when the collection is
// not part of the policy.
func (p *AccessPolicy) Grant(collection string) *CollectionGrant {
	for i := range p.Grants {
		if p.Grants[i].Collection == collection {
			return &p.Grants[i]
		}
	}
	return nil
}

// ToolAllowed reports whether the named tool is on the agent's allowlist.
func (p *AccessPolicy) ToolAllowed(name string) bool {
	return slices.Contains(p.AllowedTools, name)
}

// EffectiveMaxLimit returns the policy's limit ceiling.
func (p *AccessPolicy) EffectiveMaxLimit() int {
	if p.MaxLimit > 0 {
		return p.MaxLimit
	}
	return DefaultMaxLimit
}

// FieldAllowed reports whether a field may appear in results.
func (g *CollectionGrant) FieldAllowed(field string) bool {
	return slices.Contains(g.Fields, field)
}

// FilterFieldAllowed reports whether a field may appear in a filter.
func (g *CollectionGrant) FilterFieldAllowed(field string) bool {
	return slices.Contains(g.FilterFields, field)
}

// Validate rejects malformed policies at construction time. A policy that
// fails validation is never stored; there is no silent defaulting.
func (p *AccessPolicy) Validate() error {
	if len(p.Grants) == 0 {
		return fmt.Errorf("%w: at least one collection grant is required", ErrInvalidPolicy)
	}
	seen := make(map[string]struct{}, len(p.Grants))
	for i := range p.Grants {
		g := &p.Grants[i]
		if g.Collection == "" {
			return fmt.Errorf("%w: grant %d has an empty collection name", ErrInvalidPolicy, i)
		}
		if _, dup := seen[g.Collection]; dup {
			return fmt.Errorf("%w: duplicate grant for collection %q", ErrInvalidPolicy, g.Collection)
		}
		seen[g.Collection] = struct{}{}
		if len(g.Fields) == 0 {
			return fmt.Errorf("%w: grant for %q exposes no fields", ErrInvalidPolicy, g.Collection)
		}
		for _, f := range g.Fields {
			if f == "" {
				return fmt.Errorf("%w: grant for %q contains an empty field name", ErrInvalidPolicy, g.Collection)
			}
		}
		for _, f := range g.FilterFields {
			if f == "" {
				return fmt.Errorf("%w: grant for %q contains an empty filter field name", ErrInvalidPolicy, g.Collection)
			}
			if !g.FieldAllowed(f) {
				return fmt.Errorf("%w: filter field %q of %q is not an exposed field", ErrInvalidPolicy, f, g.Collection)
			}
		}
	}
	if len(p.AllowedTools) == 0 {
		return fmt.Errorf("%w: at least one allowed tool is required", ErrInvalidPolicy)
	}
	for _, t := range p.AllowedTools {
		if t == "" {
			return fmt.Errorf("%w: allowed tools contains an empty name", ErrInvalidPolicy)
		}
	}
	if p.MaxLimit < 0 {
		return fmt.Errorf("%w: max limit must not be negative", ErrInvalidPolicy)
	}
	return nil
}

type AgentRepository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	Update(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Agent, error)
}
