package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AssignmentMemo remembers which agent a lead identifier was routed to, so a
// retried request targets the same agent and the directory can deduplicate it.
type AssignmentMemo interface {
	// Claim records agentID for leadID unless one is already recorded, and
	// returns the agent that owns the lead.
	Claim(ctx context.Context, leadID, agentID string) (string, error)
	// Lookup returns the recorded agent, or "" when none exists.
	Lookup(ctx context.Context, leadID string) (string, error)
	// Forget drops the record, used when the directory rejected the assignment.
	Forget(ctx context.Context, leadID string) error
}

// RedisMemo stores assignments in Redis with a TTL.
type RedisMemo struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisMemo creates a memo using keys "<prefix>:lead-assignment:<leadID>".
func NewRedisMemo(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisMemo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMemo{client: client, prefix: prefix, ttl: ttl}
}

func (m *RedisMemo) key(leadID string) string {
	return fmt.Sprintf("%s:lead-assignment:%s", m.prefix, leadID)
}

func (m *RedisMemo) Claim(ctx context.Context, leadID, agentID string) (string, error) {
	key := m.key(leadID)
	ok, err := m.client.SetNX(ctx, key, agentID, m.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("claim lead assignment: %w", err)
	}
	if ok {
		return agentID, nil
	}
	owner, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return m.Claim(ctx, leadID, agentID)
	}
	if err != nil {
		return "", fmt.Errorf("read lead assignment: %w", err)
	}
	return owner, nil
}

func (m *RedisMemo) Lookup(ctx context.Context, leadID string) (string, error) {
	owner, err := m.client.Get(ctx, m.key(leadID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lead assignment: %w", err)
	}
	return owner, nil
}

func (m *RedisMemo) Forget(ctx context.Context, leadID string) error {
	if err := m.client.Del(ctx, m.key(leadID)).Err(); err != nil {
		return fmt.Errorf("forget lead assignment: %w", err)
	}
	return nil
}

// NoopMemo never remembers anything. Used when Redis is not configured.
type NoopMemo struct{}

func (NoopMemo) Claim(_ context.Context, _, agentID string) (string, error) { return agentID, nil }
func (NoopMemo) Lookup(context.Context, string) (string, error)             { return "", nil }
func (NoopMemo) Forget(context.Context, string) error                       { return nil }
