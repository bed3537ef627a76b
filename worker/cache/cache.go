package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = 24 * time.Hour

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) Set(ctx context.Context, documentID string, status string) error {
	return c.client.Set(ctx, Key(documentID), status, statusTTL).Err()
}

// Key is shared with the api so both processes read the same entry.
func Key(documentID string) string {
	return "document:status:" + documentID
}
