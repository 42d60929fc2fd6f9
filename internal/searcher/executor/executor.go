// Package executor runs a query end to end: compile the batch, send it to
// searchd in one call, reconcile the result sets and fill in snippets.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/tracing"
)

type Executor struct {
	backend   Backend
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	generator snippet.Generator
	shaper    reader.HitShaper
	logger    *slog.Logger
}

type Option func(*Executor)

// WithBreaker guards every searchd call with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Executor) { e.breaker = cb }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithGenerator replaces the CALL SNIPPETS generator.
func WithGenerator(g snippet.Generator) Option {
	return func(e *Executor) { e.generator = g }
}

func WithHitShaper(s reader.HitShaper) Option {
	return func(e *Executor) { e.shaper = s }
}

func New(backend Backend, opts ...Option) *Executor {
	e := &Executor{
		backend: backend,
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.generator == nil {
		e.generator = snippet.NewSphinxGenerator(guarded{backend: backend, breaker: e.breaker})
	}
	return e
}

// Search runs q as one batch. It returns the complete result or an error.
func (e *Executor) Search(ctx context.Context, q *query.Query) (res *reader.SearchResult, err error) {
	start := time.Now()
	root := tracing.SpanFromContext(ctx) == nil
	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer func() {
		span.EndWith(err)
		if root {
			span.Log()
		}
		e.observeSearch(res, err, time.Since(start))
	}()

	_, cspan := tracing.StartChildSpan(ctx, "compile")
	batch, err := compiler.Compile(q)
	cspan.EndWith(err)
	if err != nil {
		return nil, fmt.Errorf("compile search: %w", err)
	}
	e.observeStage("compile", time.Since(start))
	sql, args := batch.SQL()
	span.SetAttr("statements", batch.Len())

	execStart := time.Now()
	ectx, espan := tracing.StartChildSpan(ctx, "execute")
	err = e.guard(func() error {
		cur, err := e.backend.Query(ectx, sql, args...)
		if err != nil {
			return err
		}
		res, err = reader.Reconcile(cur, batch, e.shaper)
		return err
	})
	espan.EndWith(err)
	if err != nil {
		return nil, fmt.Errorf("execute search on %v: %w", q.Select.From, err)
	}
	e.observeStage("execute", time.Since(execStart))
	if e.metrics != nil {
		e.metrics.ResultSetsRead.Add(float64(batch.Len()))
	}

	if q.SnippetSource != nil && len(res.Hits()) > 0 {
		snipStart := time.Now()
		sctx, sspan := tracing.StartChildSpan(ctx, "snippets")
		err = snippet.Fill(sctx, res.Hits(), q, e.generator)
		sspan.EndWith(err)
		e.observeSnippets(err)
		if err != nil {
			return nil, fmt.Errorf("fill snippets: %w", err)
		}
		e.observeStage("snippets", time.Since(snipStart))
	}

	e.logger.Info("search executed",
		"request_id", logger.RequestID(ctx),
		"index", q.Select.From,
		"hits", len(res.Hits()),
		"facets", len(res.FacetNames()),
		"meta", res.Meta() != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Count returns the number of matches of q without fetching them.
func (e *Executor) Count(ctx context.Context, q *query.Query) (n int64, err error) {
	root := tracing.SpanFromContext(ctx) == nil
	ctx, span := tracing.StartChildSpan(ctx, "count")
	defer func() {
		span.EndWith(err)
		if root {
			span.Log()
		}
		if e.metrics != nil {
			e.metrics.CountQueriesTotal.WithLabelValues(status(err)).Inc()
		}
	}()

	st, err := compiler.CompileCount(q)
	if err != nil {
		return 0, fmt.Errorf("compile count: %w", err)
	}
	err = e.guard(func() error {
		cur, err := e.backend.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return err
		}
		n, err = reader.ReadScalar(cur)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count on %v: %w", q.Select.From, err)
	}
	e.logger.Debug("count executed", "request_id", logger.RequestID(ctx), "index", q.Select.From, "count", n)
	return n, nil
}

func (e *Executor) guard(fn func() error) error {
	if e.breaker == nil {
		return fn()
	}
	return e.breaker.Execute(fn)
}

func (e *Executor) observeStage(stage string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (e *Executor) observeSnippets(err error) {
	if e.metrics != nil {
		e.metrics.SnippetCallsTotal.WithLabelValues(status(err)).Inc()
	}
}

func (e *Executor) observeSearch(res *reader.SearchResult, err error, d time.Duration) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case len(res.Hits()) == 0:
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
	}
	e.metrics.SearchLatency.WithLabelValues("total").Observe(d.Seconds())
	e.metrics.SearchHitsCount.Observe(float64(len(res.Hits())))
	for name, entries := range res.Facets() {
		e.metrics.FacetRowsTotal.WithLabelValues(name).Add(float64(len(entries)))
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
