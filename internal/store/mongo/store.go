package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/datagate-io/datagate/internal/domain"
)

// Store wraps the MongoDB client and exposes the repositories backed by it.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	agents *AgentRepo
	docs   *DocStore
}

func New(ctx context.Context, uri, database string, connectTimeout time.Duration, maxPoolSize int) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetMaxPoolSize(uint64(maxPoolSize)). //nolint:gosec // validated >= 1 by config
		SetRetryReads(true).
		SetRetryWrites(true).
		SetAppName("datagate")

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo.New: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo.New: ping: %w", err)
	}

	db := client.Database(database)

	return &Store{
		client: client,
		db:     db,
		agents: NewAgentRepo(db),
		docs:   NewDocStore(db),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo.Store.Close: %w", err)
	}
	return nil
}

func (s *Store) Agents() domain.AgentRepository  { return s.agents }
func (s *Store) Documents() domain.DocumentStore { return s.docs }
