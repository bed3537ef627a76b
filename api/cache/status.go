package cache

import (
	"context"
	"time"

	"docOptimizer/api/database"
	"docOptimizer/api/models"
	workercache "docOptimizer/worker/cache"
)

const statusTTL = 24 * time.Hour

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, documentID string) (*models.DocumentStatus, error) {
	data, err := sc.cache.Get(ctx, workercache.Key(documentID))
	if err != nil {
		return nil, err
	}

	status := models.DocumentStatus(data)
	return &status, nil
}

func (sc *StatusCache) Set(ctx context.Context, documentID string, status models.DocumentStatus) error {
	return sc.cache.Set(ctx, workercache.Key(documentID), string(status), statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, documentID string) error {
	return sc.cache.Del(ctx, workercache.Key(documentID))
}
