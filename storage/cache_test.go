package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

type countingRepo struct {
	*Memory
	listCalls int
}

func (c *countingRepo) List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error) {
	c.listCalls++
	return c.Memory.List(ctx, project, status)
}

func newCacheFixture(t *testing.T) (*Cache, *countingRepo, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{Memory: NewMemory()}
	return NewCache(repo, client, time.Minute, "shitlist:updates"), repo, mr, client
}

func TestCacheListMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache, repo, mr, _ := newCacheFixture(t)

	task := memTask("t1", "write code", "app", domain.StatusPlanned)
	if err := cache.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first, err := cache.List(ctx, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("unexpected tasks %+v", first)
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatal("expected list to be cached")
	}
	if ttl := mr.TTL(tasksCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	calls := repo.listCalls
	second, err := cache.List(ctx, "", "")
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached list differs: %#v vs %#v", first, second)
	}
	if repo.listCalls != calls {
		t.Fatalf("expected cached list to avoid backend, calls=%d", repo.listCalls)
	}
}

func TestCacheFilteredListBypassesCache(t *testing.T) {
	ctx := context.Background()
	cache, repo, mr, _ := newCacheFixture(t)
	_ = cache.Insert(ctx, memTask("t1", "write code", "app", domain.StatusActive))

	if _, err := cache.List(ctx, "app", ""); err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatal("filtered list must not populate the cache")
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected backend call, got %d", repo.listCalls)
	}
}

func TestCacheMutationsEvictAndPublish(t *testing.T) {
	ctx := context.Background()
	cache, _, mr, client := newCacheFixture(t)

	sub := client.Subscribe(ctx, "shitlist:updates")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msgs := sub.Channel()

	task := memTask("t1", "write code", "app", domain.StatusPlanned)
	if err := cache.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := cache.List(ctx, "", ""); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatal("expected warm cache")
	}

	task.Transition(domain.StatusDone, "", time.Now())
	if err := cache.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(tasksCacheKey) {
		t.Fatal("expected update to evict the cache")
	}

	select {
	case <-msgs:
	case <-time.After(time.Second):
		t.Fatal("expected an update message on the channel")
	}
}

func TestCacheDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	cache, repo, mr, client := newCacheFixture(t)
	_ = cache.Insert(ctx, memTask("t1", "write code", "app", domain.StatusPlanned))

	if err := client.Set(ctx, tasksCacheKey, "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt cache: %v", err)
	}

	tasks, err := cache.List(ctx, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected fallback to backend, got %+v", tasks)
	}
	if repo.listCalls == 0 {
		t.Fatal("expected backend call after corrupt cache entry")
	}
	// The corrupt entry is replaced by the fresh listing.
	if !mr.Exists(tasksCacheKey) {
		t.Fatal("expected cache to be repopulated")
	}
}

func TestCacheFailedMutationPreservesCache(t *testing.T) {
	ctx := context.Background()
	cache, _, mr, _ := newCacheFixture(t)
	_ = cache.Insert(ctx, memTask("t1", "write code", "app", domain.StatusPlanned))
	if _, err := cache.List(ctx, "", ""); err != nil {
		t.Fatalf("list: %v", err)
	}

	if err := cache.Update(ctx, memTask("missing", "x", "app", domain.StatusPlanned)); err == nil {
		t.Fatal("expected update of unknown task to fail")
	}
	if !mr.Exists(tasksCacheKey) {
		t.Fatal("failed mutation must not evict the cache")
	}
}
