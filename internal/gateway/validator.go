package gateway

import (
	"fmt"

	"github.com/datagate-io/datagate/internal/domain"
)

// defaultSortField is applied when a request has no order clause and the
// field is part of the grant.
const defaultSortField = "created_at"

// Limits carries the service-wide query shaping settings from configuration.
// Max caps every policy's own ceiling; Default fills in absent limits. Zero
// values fall back to the domain constants.
type Limits struct {
	Default int
	Max     int
}

// ValidateQuery turns a raw, untrusted query request into a sanitized query
// or rejects it. It is a pure function: no side effects, and identical
// inputs always produce identical output. Rules apply in order and the
// first failure wins.
func ValidateQuery(req *domain.QueryRequest, policy *domain.AccessPolicy, limits Limits) (*domain.SanitizedQuery, error) {
	// Rule 1: collection membership. Unknown collections are always denied.
	grant := policy.Grant(req.Collection)
	if grant == nil {
		return nil, fmt.Errorf("gateway.ValidateQuery: collection %q: %w", req.Collection, domain.ErrUnknownCollection)
	}

	// Rule 2: filter field membership. The owner field is exempt here; it is
	// owned by rule 3, not by the grant's filter list.
	for _, f := range req.Filters {
		if f.Field == domain.OwnerField {
			continue
		}
		// A malformed operator is untrusted model output, not a fault:
		// deny it like any other disallowed filter shape.
		if !f.Op.Valid() {
			return nil, fmt.Errorf("gateway.ValidateQuery: operator %q: %w", f.Op, domain.ErrDisallowedFilterField)
		}
		if !grant.FilterFieldAllowed(f.Field) {
			return nil, fmt.Errorf("gateway.ValidateQuery: field %q: %w", f.Field, domain.ErrDisallowedFilterField)
		}
	}

	// Rule 3: owner scoping. The caller's identity is bound into the query;
	// a caller-supplied owner filter must agree with it exactly.
	filters := make([]domain.Filter, 0, len(req.Filters)+1)
	ownerBound := false
	for _, f := range req.Filters {
		if f.Field == domain.OwnerField {
			if f.Op != domain.OpEq {
				return nil, fmt.Errorf("gateway.ValidateQuery: owner filter must be an equality: %w", domain.ErrTenantMismatch)
			}
			v, ok := f.Value.(string)
			if !ok || v != req.CallerID.String() {
				return nil, fmt.Errorf("gateway.ValidateQuery: %w", domain.ErrTenantMismatch)
			}
			if ownerBound {
				continue
			}
			ownerBound = true
		}
		filters = append(filters, f)
	}
	if !ownerBound {
		filters = append(filters, domain.Filter{
			Field: domain.OwnerField,
			Op:    domain.OpEq,
			Value: req.CallerID.String(),
		})
	}

	// Rule 4: limit clamping. Out-of-range limits are capped, not rejected.
	// The configured service ceiling binds even policies with a higher one.
	limit := req.Limit
	if limit <= 0 {
		limit = limits.Default
		if limit <= 0 {
			limit = domain.DefaultQueryLimit
		}
	}
	max := policy.EffectiveMaxLimit()
	if limits.Max > 0 && limits.Max < max {
		max = limits.Max
	}
	if limit > max {
		limit = max
	}

	// Rule 5: ordering stays inside the granted field set. When no order is
	// requested, newest-first on created_at is used if that field is granted.
	var order *domain.Order
	switch {
	case req.OrderBy != nil:
		if !grant.FieldAllowed(req.OrderBy.Field) {
			return nil, fmt.Errorf("gateway.ValidateQuery: order field %q: %w", req.OrderBy.Field, domain.ErrDisallowedFilterField)
		}
		dir := req.OrderBy.Direction
		if dir != domain.SortAsc {
			dir = domain.SortDesc
		}
		order = &domain.Order{Field: req.OrderBy.Field, Direction: dir}
	case grant.FieldAllowed(defaultSortField):
		order = &domain.Order{Field: defaultSortField, Direction: domain.SortDesc}
	}

	return &domain.SanitizedQuery{
		Collection: req.Collection,
		OwnerID:    req.CallerID,
		Grant:      *grant,
		Filters:    filters,
		Limit:      limit,
		OrderBy:    order,
	}, nil
}
