package domain

import (
	"context"

	"github.com/google/uuid"
)

// OwnerField is the server-side row-ownership field. Every stored business
// document carries it, and every sanitized query binds it to the caller.
// It is never caller-suppliable through the projection allowlist.
const OwnerField = "owner_id"

// DefaultQueryLimit is applied when a request does not specify a limit.
const DefaultQueryLimit = 50

// FilterOp is a comparison operator supported by the query boundary. The
// set is closed: the layer does not depend on any store-specific query
// language beyond equality and range comparisons.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
)

// Valid reports whether the operator is one of the supported comparisons.
func (op FilterOp) Valid() bool {
	switch op {
	case OpEq, OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

// Filter is a single field comparison in a query.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// SortDirection orders query results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Order is an optional sort clause.
type Order struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// QueryRequest is the raw, untrusted query shape as produced by an agent
// tool call. CallerID is taken from the authenticated request context, never
// from the tool arguments.
type QueryRequest struct {
	AgentID    uuid.UUID
	CallerID   uuid.UUID
	Collection string
	Filters    []Filter
	Limit      int
	OrderBy    *Order
}

// SanitizedQuery is the policy-compliant query produced by the validator.
// It is the only input the data mediator accepts: the grant snapshot, the
// injected owner filter, and the clamped limit are all fixed at validation
// time and must not be edited afterwards.
type SanitizedQuery struct {
	Collection string
	OwnerID    uuid.UUID
	Grant      CollectionGrant
	Filters    []Filter
	Limit      int
	OrderBy    *Order
}

// QueryResult carries sanitized rows back to the caller. Every key in every
// row is a member of the originating grant's field list.
type QueryResult struct {
	Rows       []map[string]any `json:"rows"`
	Count      int              `json:"count"`
	Collection string           `json:"collection"`
}

// DocumentStore is the query-by-collection-and-filter primitive the mediator
// consumes. Implementations return raw rows; the mediator owns all
// post-filtering. Find must be read-only.
type DocumentStore interface {
	Find(ctx context.Context, q *SanitizedQuery) ([]map[string]any, error)
}
