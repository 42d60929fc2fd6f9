// Package cache keeps reconciled search results and counts in Redis, keyed
// by the exact compiled batch. Concurrent misses for one key are collapsed
// with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/pagination"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of pkg/redis the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache wraps a searcher. Every Search and Count first looks up the
// compiled statement in the store.
type QueryCache struct {
	next    pagination.Searcher
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(next pagination.Searcher, store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		next:    next,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Search(ctx context.Context, q *query.Query) (*reader.SearchResult, error) {
	batch, err := compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	sql, args := batch.SQL()
	key := buildKey("batch", sql, args, snippetTag(q))

	if data, ok := c.get(ctx, key); ok {
		var res reader.SearchResult
		if err := json.Unmarshal(data, &res); err == nil {
			c.hit(key)
			return &res, nil
		}
		c.logger.Error("cache unmarshal failed", "key", key)
	}
	c.miss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.next.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(res); err != nil {
			c.logger.Error("cache marshal failed", "key", key, "error", err)
		} else {
			c.set(ctx, key, data)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*reader.SearchResult), nil
}

func (c *QueryCache) Count(ctx context.Context, q *query.Query) (int64, error) {
	st, err := compiler.CompileCount(q)
	if err != nil {
		return 0, err
	}
	key := buildKey("count", st.SQL, st.Args, "")

	if data, ok := c.get(ctx, key); ok {
		if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			c.hit(key)
			return n, nil
		}
	}
	c.miss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		n, err := c.next.Count(ctx, q)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, []byte(strconv.FormatInt(n, 10)))
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return val.(int64), nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *QueryCache) set(ctx context.Context, key string, data []byte) {
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) hit(key string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// snippetTag distinguishes results that carry snippets from those that do
// not; the source function itself cannot be hashed.
func snippetTag(q *query.Query) string {
	if q.SnippetSource == nil {
		return ""
	}
	return fmt.Sprintf("snippets:%s:%+v", q.SnippetSourceIndex(), q.SnippetOptions)
}

func buildKey(kind, sql string, args []any, extra string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", kind, sql)
	for _, a := range args {
		fmt.Fprintf(h, "%T=%v\x00", a, a)
	}
	h.Write([]byte(extra))
	return fmt.Sprintf("%s%s:%x", keyPrefix, kind, h.Sum(nil)[:16])
}
