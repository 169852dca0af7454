package media

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/travelsidecar/service/internal/domain/model"
)

// CachedRepository fronts a Repository with a per-instance expirable LRU of
// records. Entries are copied on the way in and out, so callers may mutate
// what they get back.
type CachedRepository struct {
	inner Repository
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewCachedRepository wraps inner with an LRU of maxSize entries living ttl.
func NewCachedRepository(inner Repository, maxSize int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		inner: inner,
		cache: expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl),
	}
}

// FindByID serves from the cache and falls back to the wrapped repository.
func (c *CachedRepository) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if rec, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return rec.Clone(), nil
	}
	cacheMissesTotal.Inc()

	rec, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, rec.Clone())
	return rec, nil
}

// Insert writes through and caches the new record.
func (c *CachedRepository) Insert(ctx context.Context, rec *model.FileRecord) error {
	if err := c.inner.Insert(ctx, rec); err != nil {
		return err
	}
	c.cache.Add(rec.ID, rec.Clone())
	return nil
}

// Save writes through. On failure the entry is dropped so the next read reloads it.
func (c *CachedRepository) Save(ctx context.Context, rec *model.FileRecord) error {
	if err := c.inner.Save(ctx, rec); err != nil {
		c.cache.Remove(rec.ID)
		return err
	}
	c.cache.Add(rec.ID, rec.Clone())
	return nil
}

// FindLatestCoverFor is not cached.
func (c *CachedRepository) FindLatestCoverFor(ctx context.Context, parentID, excludingID string) (*model.FileRecord, error) {
	return c.inner.FindLatestCoverFor(ctx, parentID, excludingID)
}

// InsertReplacingCover writes through and refreshes both affected entries.
func (c *CachedRepository) InsertReplacingCover(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	prev, err := c.inner.InsertReplacingCover(ctx, rec)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		c.cache.Remove(prev.ID)
	}
	c.cache.Add(rec.ID, rec.Clone())
	return prev, nil
}
