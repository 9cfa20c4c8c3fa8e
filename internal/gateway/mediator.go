package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/datagate-io/datagate/internal/domain"
)

// Mediator executes sanitized queries against the document store and
// post-filters the result rows to the granted field set. It accepts only the
// validator's output type and never writes.
type Mediator struct {
	store domain.DocumentStore
}

func NewMediator(store domain.DocumentStore) *Mediator {
	return &Mediator{store: store}
}

// Execute runs the sanitized query. The store call is retried once on
// failure: the query is read-only, so a retry has no side effects. Store
// diagnostics stay in the logs; the caller only ever sees ErrDataAccess.
func (m *Mediator) Execute(ctx context.Context, q *domain.SanitizedQuery) (*domain.QueryResult, error) {
	raw, err := m.store.Find(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("collection", q.Collection).Msg("document store query failed, retrying once")
		raw, err = m.store.Find(ctx, q)
	}
	if err != nil {
		log.Error().Err(err).Str("collection", q.Collection).Msg("document store query failed")
		return nil, fmt.Errorf("mediator.Execute: %w", domain.ErrDataAccess)
	}

	// Second, independent enforcement of the allowlist: even if the store
	// ignored the projection, no undeclared key and no foreign row gets out.
	owner := q.OwnerID.String()
	rows := make([]map[string]any, 0, len(raw))
	for _, doc := range raw {
		if !ownedBy(doc, owner) {
			continue
		}
		row := make(map[string]any, len(q.Grant.Fields))
		for _, field := range q.Grant.Fields {
			if v, ok := doc[field]; ok {
				row[field] = v
			}
		}
		rows = append(rows, row)
	}

	return &domain.QueryResult{
		Rows:       rows,
		Count:      len(rows),
		Collection: q.Collection,
	}, nil
}

// ownedBy reports whether a raw document belongs to the given owner. Rows
// without an ownership field are excluded outright.
func ownedBy(doc map[string]any, owner string) bool {
	v, ok := doc[domain.OwnerField]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == owner
}
