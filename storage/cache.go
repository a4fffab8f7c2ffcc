package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// tasksCacheKey holds the cached unfiltered task list shared by all readers.
const tasksCacheKey = "shitlist:tasks"

type repository interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error)
	Insert(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id string) error
}

// Cache wraps a repository with Redis-backed caching of the full task list.
// Every mutation evicts the cache and publishes a message on the update
// channel so other gateway instances can refresh their stream subscribers.
type Cache struct {
	base    repository
	redis   *redis.Client
	ttl     time.Duration
	channel string
}

// NewCache creates a caching repository wrapper using the provided Redis
// client and TTL. channel may be empty to disable cross-instance updates.
func NewCache(base repository, client *redis.Client, ttl time.Duration, channel string) *Cache {
	if base == nil {
		panic("storage.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, channel: channel}
}

// Get passes through to the backing repository; resolution works on the full
// list so a per-task cache would not earn its keep.
func (c *Cache) Get(ctx context.Context, id string) (*domain.Task, error) {
	return c.base.Get(ctx, id)
}

// List serves the unfiltered list from cache when warm. Filtered listings
// pass through to the backing store's indexed queries.
func (c *Cache) List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error) {
	if project != "" || status != "" {
		return c.base.List(ctx, project, status)
	}
	if tasks, ok := c.loadFromCache(ctx); ok {
		return tasks, nil
	}
	tasks, err := c.base.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasks)
	return tasks, nil
}

func (c *Cache) Insert(ctx context.Context, t domain.Task) error {
	if err := c.base.Insert(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) Update(ctx context.Context, t domain.Task) error {
	if err := c.base.Update(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey, data, c.ttl).Err()
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, tasksCacheKey).Err()
	if c.channel != "" {
		payload, err := json.Marshal(map[string]any{"updatedAt": time.Now().UnixNano()})
		if err != nil {
			return
		}
		_ = c.redis.Publish(ctx, c.channel, payload).Err()
	}
}
