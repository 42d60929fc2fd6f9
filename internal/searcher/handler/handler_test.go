package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/logger"
)

type fakeSearcher struct {
	searched []*query.Query
	counted  int
	total    int64
	err      error
}

func (s *fakeSearcher) Search(_ context.Context, q *query.Query) (*reader.SearchResult, error) {
	s.searched = append(s.searched, q)
	if s.err != nil {
		return nil, s.err
	}
	res := reader.NewSearchResult([]query.Row{{"id": int64(1)}, {"id": int64(2)}})
	for _, f := range q.FacetList() {
		res.SetFacet(f.Label(), []reader.FacetEntry{{Value: int64(10), Count: 2}})
	}
	if q.Meta.Enabled {
		res.SetMeta(map[string]string{"total_found": "45"})
	}
	return res, nil
}

func (s *fakeSearcher) Count(context.Context, *query.Query) (int64, error) {
	s.counted++
	return s.total, s.err
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultIndex:    "article_index",
		AllowedIndexes:  []string{"product_index"},
		AllowedFacets:   []string{"author_id", "category_id"},
		DefaultPageSize: 20,
		MaxPageSize:     50,
		Timeout:         time.Second,
	}
}

func get(t *testing.T, h *Handler, target string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var resp Response
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func TestSearchWithMeta(t *testing.T) {
	s := &fakeSearcher{}
	h := New(s, searchConfig())
	rec, resp := get(t, h, "/api/v1/search?q=dogs&page=2&per_page=10&facet=author_id&facet=category_id&meta=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if s.counted != 0 {
		t.Error("count query ran although meta was requested")
	}
	if resp.Total != 45 || resp.Pages != 5 || resp.Page != 2 || resp.PageSize != 10 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Hits) != 2 || len(resp.Facets) != 2 || resp.Meta["total_found"] != "45" {
		t.Errorf("resp = %+v", resp)
	}
	q := s.searched[0]
	if q.Match.Text != "dogs" || q.Select.Limit != 10 || q.Select.Offset != 10 {
		t.Errorf("query = %+v", q.Select)
	}
}

func TestSearchWithoutMetaCountsFirst(t *testing.T) {
	s := &fakeSearcher{total: 25}
	h := New(s, searchConfig())
	rec, resp := get(t, h, "/api/v1/search?q=dogs&page=9&per_page=100")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if s.counted != 1 {
		t.Errorf("count ran %d times", s.counted)
	}
	// per_page is clamped to 50 and page 9 to the only page.
	if resp.Page != 1 || resp.PageSize != 50 || resp.Pages != 1 || resp.Total != 25 {
		t.Errorf("resp = %+v", resp)
	}
	if mm, ok := s.searched[0].Options.MaxMatches(); !ok || mm != 50 {
		t.Errorf("max_matches = %d, %v", mm, ok)
	}
}

func TestSearchRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"index", "/api/v1/search?q=a&index=secret"},
		{"page", "/api/v1/search?q=a&page=0"},
		{"per_page", "/api/v1/search?q=a&per_page=x"},
		{"facet", "/api/v1/search?q=a&facet=author_id%3BSHOW%20TABLES"},
		{"meta", "/api/v1/search?q=a&meta=maybe"},
		{"snippets disabled", "/api/v1/search?q=a&snippets=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{}
			rec, _ := get(t, New(s, searchConfig()), tt.target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
			if len(s.searched) != 0 {
				t.Error("searcher called")
			}
		})
	}
}

func TestSearchOtherIndex(t *testing.T) {
	s := &fakeSearcher{total: 1}
	_, resp := get(t, New(s, searchConfig()), "/api/v1/search?index=product_index")
	if resp.Index != "product_index" || s.searched[0].Select.From[0] != "product_index" {
		t.Errorf("index = %q", resp.Index)
	}
	if !s.searched[0].Match.IsZero() {
		t.Error("empty q produced a MATCH")
	}
}

func TestSearchErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pkgerrors.Upstream("query searchd", errors.New("refused")), http.StatusBadGateway},
		{pkgerrors.Protocolf("two result sets missing"), http.StatusInternalServerError},
		{pkgerrors.Configf("bad facet"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec, _ := get(t, New(&fakeSearcher{err: tt.err}, searchConfig()), "/api/v1/search?q=a&meta=1")
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestSearchSnippets(t *testing.T) {
	s := &fakeSearcher{}
	src := func(_ context.Context, rows []query.Row) ([]query.Source, error) {
		return nil, nil
	}
	h := New(s, searchConfig(), WithSnippets(src, query.SnippetOptions{BeforeMatch: "<b>"}))
	rec, _ := get(t, h, "/api/v1/search?q=dogs&snippets=true&meta=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	q := s.searched[0]
	if q.SnippetSource == nil || q.SnippetOptions.BeforeMatch != "<b>" {
		t.Error("snippet source not attached")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func TestSearchTracksAnalytics(t *testing.T) {
	pub := &recordingPublisher{}
	c := analytics.NewCollector(pub, 8)
	c.Start(context.Background())
	h := New(&fakeSearcher{}, searchConfig(), WithCollector(c))
	get(t, h, "/api/v1/search?q=dogs&meta=1&facet=author_id")
	c.Close()

	if len(pub.events) != 1 {
		t.Fatalf("events = %d", len(pub.events))
	}
	ev := pub.events[0].Value.(analytics.SearchEvent)
	if ev.Query != "dogs" || ev.Returned != 2 || ev.Total != 45 || ev.Type != analytics.EventSearch {
		t.Errorf("event = %+v", ev)
	}
}

func TestCacheEndpointsDisabled(t *testing.T) {
	h := New(&fakeSearcher{}, searchConfig())
	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", rec.Code)
	}
}

func TestSearchMetaPageBeyondTotal(t *testing.T) {
	s := &fakeSearcher{}
	rec, resp := get(t, New(s, searchConfig()), "/api/v1/search?q=dogs&page=9&per_page=10&meta=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.searched[0].Select.Offset != 80 {
		t.Errorf("offset = %d", s.searched[0].Select.Offset)
	}
	if resp.Page != 9 || resp.Pages != 5 || resp.Total != 45 || !resp.OutOfRange {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearchLogsRequestSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	logger.SetupWriter(&buf, "debug", "json")
	t.Cleanup(func() { slog.SetDefault(prev) })

	get(t, New(&fakeSearcher{}, searchConfig()), "/api/v1/search?q=dogs&meta=1")
	if !strings.Contains(buf.String(), `"span":"search_request"`) {
		t.Errorf("request span not logged:\n%s", buf.String())
	}
}
