package policy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagate-io/datagate/internal/domain"
)

type fakeAgentRepo struct {
	mu     sync.Mutex
	agents map[uuid.UUID]*domain.Agent
	gets   int
}

func (r *fakeAgentRepo) Create(context.Context, *domain.Agent) error { return nil }
func (r *fakeAgentRepo) Update(context.Context, *domain.Agent) error { return nil }
func (r *fakeAgentRepo) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (r *fakeAgentRepo) ListByOwner(context.Context, uuid.UUID) ([]*domain.Agent, error) {
	return nil, nil
}

func (r *fakeAgentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	agent, ok := r.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return agent, nil
}

func (r *fakeAgentRepo) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

func testAgent() *domain.Agent {
	return &domain.Agent{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "reporting-agent",
		Policy: domain.AccessPolicy{
			Grants: []domain.CollectionGrant{
				{Collection: "sales_deals", Fields: []string{"id", "value"}, FilterFields: []string{"value"}},
			},
			AllowedTools: []string{"query_collection"},
			MaxLimit:     100,
		},
	}
}

func TestResolverCacheMiss(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	r := NewResolver(repo, cache, 10*time.Second)

	got, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, 1, repo.getCount())
	assert.Equal(t, 1, cache.sets, "the miss populates the cache")
}

func TestResolverCacheHit(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	r := NewResolver(repo, cache, 10*time.Second)

	_, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, agent.Policy.MaxLimit, got.Policy.MaxLimit)
	assert.Equal(t, 1, repo.getCount(), "second resolve served from cache")
}

func TestResolverCorruptCacheEntry(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	cache.data["policy:"+agent.ID.String()] = []byte("{not json")
	r := NewResolver(repo, cache, 10*time.Second)

	got, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, 1, repo.getCount(), "corrupt entry falls through to the repository")
	assert.Equal(t, 1, cache.deletes, "corrupt entry is dropped")
}

func TestResolverCacheUnavailable(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	r := NewResolver(repo, cache, 10*time.Second)

	got, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err, "cache outage must not break resolution")
	assert.Equal(t, agent.ID, got.ID)
}

func TestResolverMissingAgent(t *testing.T) {
	t.Parallel()

	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{}}
	r := NewResolver(repo, newFakeCache(), 10*time.Second)

	_, err := r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolverNilCache(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	r := NewResolver(repo, nil, 10*time.Second)

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), agent.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, repo.getCount(), "no cache means every lookup hits the repository")
}

func TestResolverZeroTTLBypassesCache(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	r := NewResolver(repo, cache, 0)

	_, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.sets)
}

func TestResolverInvalidate(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	r := NewResolver(repo, cache, 10*time.Second)

	_, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)

	// Narrow the policy and invalidate; the next resolve must observe the
	// narrowed version immediately instead of waiting out the TTL.
	agent.Policy.AllowedTools = []string{}
	r.Invalidate(context.Background(), agent.ID)

	got, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Policy.AllowedTools)
	assert.Equal(t, 2, repo.getCount())
}

func TestResolverCachedEntryRoundTrips(t *testing.T) {
	t.Parallel()

	agent := testAgent()
	repo := &fakeAgentRepo{agents: map[uuid.UUID]*domain.Agent{agent.ID: agent}}
	cache := newFakeCache()
	r := NewResolver(repo, cache, 10*time.Second)

	_, err := r.Resolve(context.Background(), agent.ID)
	require.NoError(t, err)

	raw, ok := cache.data["policy:"+agent.ID.String()]
	require.True(t, ok)

	var cached domain.Agent
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, agent.Policy.Grants, cached.Policy.Grants)
}
