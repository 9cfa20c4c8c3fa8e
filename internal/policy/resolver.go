package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/datagate-io/datagate/internal/domain"
)

// Cache is a read-through byte cache with TTL expiry. *redis.Cache satisfies
// this interface. Get returns domain.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Resolver looks up an agent and its access policy, fronted by a short-TTL
// cache. Policy edits are infrequent, so a few seconds of staleness is
// acceptable: a stale entry can only lag a narrowing, never grant anything
// the cache did not already observe.
type Resolver struct {
	agents domain.AgentRepository
	cache  Cache
	ttl    time.Duration
}

// NewResolver builds a Resolver. cache may be nil, in which case every
// lookup goes to the repository.
func NewResolver(agents domain.AgentRepository, cache Cache, ttl time.Duration) *Resolver {
	return &Resolver{agents: agents, cache: cache, ttl: ttl}
}

// Resolve returns the agent for agentID. A missing agent propagates as
// domain.ErrNotFound and is treated as a denial by the gateway, never as
// "no restrictions".
func (r *Resolver) Resolve(ctx context.Context, agentID uuid.UUID) (*domain.Agent, error) {
	key := cacheKey(agentID)

	if r.cache != nil && r.ttl > 0 {
		if raw, err := r.cache.Get(ctx, key); err == nil {
			var agent domain.Agent
			if unmarshalErr := json.Unmarshal(raw, &agent); unmarshalErr == nil {
				return &agent, nil
			}
			// A corrupt entry falls through to the repository.
			log.Warn().Str("agent_id", agentID.String()).Msg("policy cache entry corrupt, dropping")
			_ = r.cache.Delete(ctx, key)
		} else if !errors.Is(err, domain.ErrNotFound) {
			// Cache unavailability is soft: the repository is authoritative.
			log.Warn().Err(err).Msg("policy cache read failed")
		}
	}

	agent, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("policy.Resolve: %w", err)
	}

	if r.cache != nil && r.ttl > 0 {
		if raw, marshalErr := json.Marshal(agent); marshalErr == nil {
			if setErr := r.cache.Set(ctx, key, raw, r.ttl); setErr != nil {
				log.Warn().Err(setErr).Msg("policy cache write failed")
			}
		}
	}

	return agent, nil
}

// Invalidate drops the cached entry after a policy edit so narrowings
// propagate without waiting out the TTL.
func (r *Resolver) Invalidate(ctx context.Context, agentID uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cacheKey(agentID)); err != nil {
		log.Warn().Err(err).Str("agent_id", agentID.String()).Msg("policy cache invalidation failed")
	}
}

func cacheKey(agentID uuid.UUID) string {
	return "policy:" + agentID.String()
}
