// Package pagecache stores fetched article payloads so repeated scans of
// the same page do not hit the wiki API.
package pagecache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, v []byte, ttl time.Duration)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) {}

// LocalLRU is an in-process LRU with per-entry expiry.
type LocalLRU struct {
	mu     sync.Mutex
	cap    int
	list   *list.List               // front = most recent
	m      map[string]*list.Element // key -> element
	hits   int
	misses int
}

type lruEntry struct {
	key string
	val []byte
	exp time.Time
}

func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 256
	}
	return &LocalLRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity)}
}

func (l *LocalLRU) Get(_ context.Context, key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.After(time.Now()) {
			l.list.MoveToFront(el)
			l.hits++
			return ent.val, true
		}
		// expired
		l.list.Remove(el)
		delete(l.m, key)
	}
	l.misses++
	return nil, false
}

func (l *LocalLRU) Set(_ context.Context, key string, v []byte, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp := time.Now().Add(ttl)
	if el, ok := l.m[key]; ok {
		el.Value = lruEntry{key: key, val: v, exp: exp}
		l.list.MoveToFront(el)
		return
	}
	el := l.list.PushFront(lruEntry{key: key, val: v, exp: exp})
	l.m[key] = el
	if l.list.Len() > l.cap {
		if lru := l.list.Back(); lru != nil {
			delete(l.m, lru.Value.(lruEntry).key)
			l.list.Remove(lru)
		}
	}
}

// Len returns the number of entries, including expired ones not yet evicted.
func (l *LocalLRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

// HitRate is hits / (hits + misses), or 0 before any lookup.
func (l *LocalLRU) HitRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits+l.misses == 0 {
		return 0
	}
	return float64(l.hits) / float64(l.hits+l.misses)
}

// Redis stores entries under a key prefix in a Redis server.
type Redis struct {
	cli    *redis.Client
	prefix string
}

// NewRedis connects using a redis:// URL and pings once.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{cli: cli, prefix: prefix}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(cli *redis.Client, prefix string) *Redis {
	return &Redis{cli: cli, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, v []byte, ttl time.Duration) {
	_ = r.cli.Set(ctx, r.prefix+key, v, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	if err := r.cli.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
