package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datagate-io/datagate/internal/domain"
)

// DocStore implements domain.DocumentStore over MongoDB collections. It only
// ever receives sanitized queries, and it still asks the server to project
// just the granted fields so undeclared data never leaves the store.
type DocStore struct {
	db *mongo.Database
}

func NewDocStore(db *mongo.Database) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) Find(ctx context.Context, q *domain.SanitizedQuery) ([]map[string]any, error) {
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return nil, fmt.Errorf("mongo.DocStore.Find: %w", err)
	}

	opts := options.Find().
		SetProjection(buildProjection(&q.Grant)).
		SetLimit(int64(q.Limit))
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Direction == domain.SortDesc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}})
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo.DocStore.Find: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo.DocStore.Find: decode: %w", err)
		}
		rows = append(rows, map[string]any(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo.DocStore.Find: cursor: %w", err)
	}

	return rows, nil
}

// buildFilter translates the closed operator set into a bson filter.
func buildFilter(filters []domain.Filter) (bson.D, error) {
	out := bson.D{}
	for _, f := range filters {
		switch f.Op {
		case domain.OpEq:
			out = append(out, bson.E{Key: f.Field, Value: f.Value})
		case domain.OpGt:
			out = append(out, bson.E{Key: f.Field, Value: bson.D{{Key: "$gt", Value: f.Value}}})
		case domain.OpGte:
			out = append(out, bson.E{Key: f.Field, Value: bson.D{{Key: "$gte", Value: f.Value}}})
		case domain.OpLt:
			out = append(out, bson.E{Key: f.Field, Value: bson.D{{Key: "$lt", Value: f.Value}}})
		case domain.OpLte:
			out = append(out, bson.E{Key: f.Field, Value: bson.D{{Key: "$lte", Value: f.Value}}})
		default:
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return out, nil
}

// buildProjection limits the server's response to the granted fields. The
// ownership field rides along so the mediator can verify row ownership
// independently; it is stripped again before rows leave the mediator.
func buildProjection(grant *domain.CollectionGrant) bson.D {
	projection := bson.D{{Key: "_id", Value: 0}}
	seen := map[string]struct{}{domain.OwnerField: {}}
	projection = append(projection, bson.E{Key: domain.OwnerField, Value: 1})
	for _, field := range grant.Fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	return projection
}
