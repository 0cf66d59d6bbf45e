package wiki

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/wikirefs/internal/metrics"
	"github.com/dgallion1/wikirefs/internal/pagecache"
)

// Cached serves pages from a cache before falling back to another Fetcher.
type Cached struct {
	next  Fetcher
	cache pagecache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCached(next Fetcher, cache pagecache.Cache, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *Cached) FetchParsed(ctx context.Context, title string) (*Page, error) {
	key := cacheKey(title)
	if b, ok := c.cache.Get(ctx, key); ok {
		var page Page
		if err := json.Unmarshal(b, &page); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &page, nil
		}
		c.log.Warn("discarding undecodable cache entry", "key", key)
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	page, err := c.next.FetchParsed(ctx, title)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(page); err == nil {
		c.cache.Set(ctx, key, b, c.ttl)
	}
	return page, nil
}

// cacheKey normalises a title the way MediaWiki does for the common cases:
// underscores and spaces are the same, and the first letter is case-folded
// to upper.
func cacheKey(title string) string {
	t := strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return t
	}
	r := []rune(t)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
