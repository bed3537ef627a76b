package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStatusCache_Set(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewStatusCache(client)
	if err := c.Set(context.Background(), "doc-1", "processing"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := c.Set(context.Background(), "doc-1", "completed"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := mr.Get("document:status:doc-1")
	if err != nil {
		t.Fatalf("Expected key to exist: %v", err)
	}
	if got != "completed" {
		t.Errorf("Expected completed, got %s", got)
	}
	if ttl := mr.TTL("document:status:doc-1"); ttl != statusTTL {
		t.Errorf("Expected ttl %v, got %v", statusTTL, ttl)
	}
}
