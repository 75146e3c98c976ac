package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard marks a cart as being checked out so that a retried
// request landing on another replica does not create a second order.
type SubmissionGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSubmissionGuard(client *redis.Client, ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{Client: client, TTL: ttl}
}

func (g *SubmissionGuard) MarkerKey(key string) string {
	return "checkout:" + key
}

// Claim sets the marker if it is absent. It reports false when another
// submission of the same cart already holds it.
func (g *SubmissionGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.Client.SetNX(ctx, g.MarkerKey(key), "1", g.TTL).Result()
}

func (g *SubmissionGuard) Release(ctx context.Context, key string) error {
	return g.Client.Del(ctx, g.MarkerKey(key)).Err()
}
