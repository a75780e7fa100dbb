package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL covers the pubsub redelivery window for transfer events.
const DefaultTTL = 72 * time.Hour

// ClaimStore is the slice of the Redis client a Guard uses.
type ClaimStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard claims outbox event ids per consumer so redelivered messages are not
// applied twice. Keys look like `rf:idempotency:evt:<consumer>:<event_id>`.
type Guard struct {
	store ClaimStore
	ttl   time.Duration
	owner string
}

// NewGuard builds a guard whose claims expire after ttl. A zero ttl uses DefaultTTL.
func NewGuard(store ClaimStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl, owner: uuid.NewString()}, nil
}

// Claim reports whether this process now owns the event. False means another
// delivery already handled (or is handling) it.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.owner, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

// Release drops a claim held by this guard so the next delivery can retry.
// Claims owned by another process are left alone.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	holder, err := g.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read claim %s: %w", key, err)
	}
	if holder != g.owner {
		return nil
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
