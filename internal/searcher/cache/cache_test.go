package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

type memStore struct {
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

type countingSearcher struct {
	searches, counts int
}

func (s *countingSearcher) Search(_ context.Context, q *query.Query) (*reader.SearchResult, error) {
	s.searches++
	res := reader.NewSearchResult([]query.Row{{"id": int64(7)}})
	for _, f := range q.FacetList() {
		res.SetFacet(f.Label(), []reader.FacetEntry{{Value: int64(1), Count: 3}})
	}
	return res, nil
}

func (s *countingSearcher) Count(context.Context, *query.Query) (int64, error) {
	s.counts++
	return 12, nil
}

func TestSearchIsCachedByBatch(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	next := &countingSearcher{}
	c := New(next, store, time.Minute, nil)
	ctx := context.Background()

	q := query.New("idx").Matching("dogs").Facets(query.FacetOn("author_id"))
	first, err := c.Search(ctx, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := c.Search(ctx, q.Clone())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if next.searches != 1 {
		t.Errorf("searcher called %d times", next.searches)
	}
	if len(second.Hits()) != len(first.Hits()) {
		t.Errorf("cached hits = %v", second.Hits())
	}
	if _, err := second.Facet("author_id"); err != nil {
		t.Errorf("cached facet lost: %v", err)
	}

	if _, err := c.Search(ctx, query.New("idx").Matching("cats")); err != nil {
		t.Fatal(err)
	}
	if next.searches != 2 {
		t.Error("different query served from cache")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestCountIsCached(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	next := &countingSearcher{}
	c := New(next, store, time.Minute, nil)
	for i := 0; i < 3; i++ {
		n, err := c.Count(context.Background(), query.New("idx").Matching("dogs"))
		if err != nil || n != 12 {
			t.Fatalf("Count = %d, %v", n, err)
		}
	}
	if next.counts != 1 {
		t.Errorf("count ran %d times", next.counts)
	}
}

func TestInvalidate(t *testing.T) {
	store := &memStore{data: map[string][]byte{"other": []byte("x")}}
	next := &countingSearcher{}
	c := New(next, store, time.Minute, nil)
	ctx := context.Background()
	c.Search(ctx, query.New("idx"))
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := store.data["other"]; !ok || len(store.data) != 1 {
		t.Errorf("store after invalidate = %v", store.data)
	}
	c.Search(ctx, query.New("idx"))
	if next.searches != 2 {
		t.Error("invalidated entry was served")
	}
}

func TestBuildKey(t *testing.T) {
	a := buildKey("batch", "SELECT * FROM `idx` WHERE MATCH(?)", []any{"dogs"}, "")
	b := buildKey("batch", "SELECT * FROM `idx` WHERE MATCH(?)", []any{"cats"}, "")
	c := buildKey("batch", "SELECT * FROM `idx` WHERE MATCH(?)", []any{"dogs"}, "snippets")
	d := buildKey("batch", "SELECT * FROM `idx` WHERE `id` = ?", []any{int64(1)}, "")
	e := buildKey("batch", "SELECT * FROM `idx` WHERE `id` = ?", []any{"1"}, "")
	if a == b || a == c || d == e {
		t.Error("distinct inputs share a key")
	}
	if !strings.HasPrefix(a, keyPrefix+"batch:") {
		t.Errorf("key = %q", a)
	}
	if a != buildKey("batch", "SELECT * FROM `idx` WHERE MATCH(?)", []any{"dogs"}, "") {
		t.Error("key is not stable")
	}
}

func TestCompileErrorIsReturned(t *testing.T) {
	c := New(&countingSearcher{}, &memStore{data: map[string][]byte{}}, time.Minute, nil)
	if _, err := c.Search(context.Background(), query.New()); !errors.Is(err, pkgerrors.ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
}
