package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datagate-io/datagate/internal/domain"
)

const agentsCollection = "agents"

// AgentRepo persists agents and their access policies.
type AgentRepo struct {
	coll *mongo.Collection
}

func NewAgentRepo(db *mongo.Database) *AgentRepo {
	return &AgentRepo{coll: db.Collection(agentsCollection)}
}

type agentDoc struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description,omitempty"`
	Policy      policyDoc `bson:"policy"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type policyDoc struct {
	Grants       []grantDoc `bson:"grants"`
	AllowedTools []string   `bson:"allowed_tools"`
	MaxLimit     int        `bson:"max_limit,omitempty"`
}

type grantDoc struct {
	Collection   string   `bson:"collection"`
	Fields       []string `bson:"fields"`
	FilterFields []string `bson:"filter_fields"`
}

func (r *AgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	_, err := r.coll.InsertOne(ctx, toDoc(a))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("agentRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("agentRepo.Create: %w", err)
	}
	return nil
}

func (r *AgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	var doc agentDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", err)
	}
	return fromDoc(&doc)
}

func (r *AgentRepo) Update(ctx context.Context, a *domain.Agent) error {
	// The owner filter prevents one tenant from replacing another's agent.
	res, err := r.coll.ReplaceOne(ctx,
		bson.D{
			{Key: "_id", Value: a.ID.String()},
			{Key: "owner_id", Value: a.OwnerID.String()},
		},
		toDoc(a),
	)
	if err != nil {
		return fmt.Errorf("agentRepo.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("agentRepo.Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *AgentRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "owner_id", Value: ownerID.String()},
	})
	if err != nil {
		return fmt.Errorf("agentRepo.Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("agentRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *AgentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Agent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "owner_id", Value: ownerID.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("agentRepo.ListByOwner: %w", err)
	}
	defer cursor.Close(ctx)

	var agents []*domain.Agent
	for cursor.Next(ctx) {
		var doc agentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("agentRepo.ListByOwner: decode: %w", err)
		}
		agent, err := fromDoc(&doc)
		if err != nil {
			return nil, fmt.Errorf("agentRepo.ListByOwner: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("agentRepo.ListByOwner: cursor: %w", err)
	}

	return agents, nil
}

func toDoc(a *domain.Agent) *agentDoc {
	grants := make([]grantDoc, 0, len(a.Policy.Grants))
	for _, g := range a.Policy.Grants {
		grants = append(grants, grantDoc{
			Collection:   g.Collection,
			Fields:       g.Fields,
			FilterFields: g.FilterFields,
		})
	}
	return &agentDoc{
		ID:          a.ID.String(),
		OwnerID:     a.OwnerID.String(),
		Name:        a.Name,
		Description: a.Description,
		Policy: policyDoc{
			Grants:       grants,
			AllowedTools: a.Policy.AllowedTools,
			MaxLimit:     a.Policy.MaxLimit,
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromDoc(doc *agentDoc) (*domain.Agent, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("parse agent id: %w", err)
	}
	ownerID, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}

	grants := make([]domain.CollectionGrant, 0, len(doc.Policy.Grants))
	for _, g := range doc.Policy.Grants {
		grants = append(grants, domain.CollectionGrant{
			Collection:   g.Collection,
			Fields:       g.Fields,
			FilterFields: g.FilterFields,
		})
	}

	return &domain.Agent{
		ID:          id,
		OwnerID:     ownerID,
		Name:        doc.Name,
		Description: doc.Description,
		Policy: domain.AccessPolicy{
			Grants:       grants,
			AllowedTools: doc.Policy.AllowedTools,
			MaxLimit:     doc.Policy.MaxLimit,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
