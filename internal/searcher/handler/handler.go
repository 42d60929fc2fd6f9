// Package handler exposes the search pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/pagination"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/tracing"
)

type Handler struct {
	searcher    pagination.Searcher
	cfg         config.SearchConfig
	cache       *cache.QueryCache
	collector   *analytics.Collector
	source      query.SourceFunc
	snippetOpts query.SnippetOptions
	logger      *slog.Logger
}

type Option func(*Handler)

// WithCache enables the cache admin endpoints. The searcher passed to New
// is expected to be c itself.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithCollector(c *analytics.Collector) Option {
	return func(h *Handler) { h.collector = c }
}

// WithSnippets lets clients request snippets=true.
func WithSnippets(source query.SourceFunc, opts query.SnippetOptions) Option {
	return func(h *Handler) {
		h.source = source
		h.snippetOpts = opts
	}
}

func New(searcher pagination.Searcher, cfg config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		searcher: searcher,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response is the body of a successful search.
type Response struct {
	Query      string                         `json:"query"`
	Index      string                         `json:"index"`
	Hits       []query.Row                    `json:"hits"`
	Facets     map[string][]reader.FacetEntry `json:"facets,omitempty"`
	Meta       map[string]string              `json:"meta,omitempty"`
	Total      int64                          `json:"total"`
	Page       int                            `json:"page"`
	PageSize   int                            `json:"page_size"`
	Pages      int                            `json:"pages"`
	// OutOfRange marks a page past the last one. It can only happen with
	// meta, where the total is learned from the same batch as the hits.
	OutOfRange bool                           `json:"out_of_range,omitempty"`
}

type searchRequest struct {
	text     string
	index    string
	page     int
	pageSize int
	facets   []string
	meta     bool
	snippets bool
}

// Search serves GET /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parse(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	ctx, span := tracing.StartSpan(ctx, "search_request", "")
	span.SetAttr("index", req.index)
	resp, err := h.run(ctx, req)
	span.EndWith(err)
	span.Log()
	latency := time.Since(start)
	h.track(ctx, req, resp, err, latency)
	if err != nil {
		status := pkgerrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", req.text, "index", req.index, "error", err)
			h.writeError(w, status, "search failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	log.Info("search completed",
		"query", req.text,
		"index", req.index,
		"returned", len(resp.Hits),
		"total", resp.Total,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) parse(r *http.Request) (searchRequest, error) {
	v := r.URL.Query()
	req := searchRequest{
		text:     v.Get("q"),
		index:    h.cfg.DefaultIndex,
		page:     1,
		pageSize: h.cfg.DefaultPageSize,
	}
	if idx := v.Get("index"); idx != "" {
		if !h.cfg.IndexAllowed(idx) {
			return req, fmt.Errorf("index %q is not searchable", idx)
		}
		req.index = idx
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return req, fmt.Errorf("page must be a positive integer")
		}
		req.page = n
	}
	if s := v.Get("per_page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return req, fmt.Errorf("per_page must be a positive integer")
		}
		req.pageSize = min(n, h.cfg.MaxPageSize)
	}
	for _, f := range v["facet"] {
		if !h.cfg.FacetAllowed(f) {
			return req, fmt.Errorf("facet %q is not available", f)
		}
		req.facets = append(req.facets, f)
	}
	var err error
	if req.meta, err = boolParam(v.Get("meta")); err != nil {
		return req, fmt.Errorf("meta: %w", err)
	}
	if req.snippets, err = boolParam(v.Get("snippets")); err != nil {
		return req, fmt.Errorf("snippets: %w", err)
	}
	if req.snippets && h.source == nil {
		return req, fmt.Errorf("snippets are disabled")
	}
	return req, nil
}

func (h *Handler) run(ctx context.Context, req searchRequest) (*Response, error) {
	q := query.New(req.index).ShowMeta(req.meta)
	if req.text != "" {
		q.Matching(req.text)
	}
	for _, f := range req.facets {
		q.AddFacets(query.FacetOn(f))
	}
	if req.snippets {
		q.Snippets(h.source, h.snippetOpts)
	}

	p := pagination.New(req.page, req.pageSize)
	provider, err := pagination.NewProvider(h.searcher, q, p)
	if err != nil {
		return nil, err
	}
	if err := provider.Prepare(ctx); err != nil {
		return nil, err
	}
	total, err := provider.TotalCount(ctx)
	if err != nil {
		return nil, err
	}

	hits := provider.Hits()
	if hits == nil {
		hits = []query.Row{}
	}
	return &Response{
		Query:    req.text,
		Index:    req.index,
		Hits:     hits,
		Facets:   provider.Facets(),
		Meta:     provider.Meta(),
		Total:    total,
		Page:     provider.Page(),
		PageSize: p.Limit(),
		Pages:    p.PageCount(),

		OutOfRange: provider.OutOfRange(),
	}, nil
}

func (h *Handler) track(ctx context.Context, req searchRequest, resp *Response, err error, latency time.Duration) {
	if h.collector == nil {
		return
	}
	ev := analytics.SearchEvent{
		Query:     req.text,
		Index:     req.index,
		Page:      req.page,
		PageSize:  req.pageSize,
		Facets:    req.facets,
		Snippets:  req.snippets,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Page = resp.Page
		ev.Returned = len(resp.Hits)
		ev.Total = resp.Total
	}
	h.collector.Track(ev)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
