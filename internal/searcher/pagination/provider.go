package pagination

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// Searcher runs search batches and count queries.
type Searcher interface {
	Search(ctx context.Context, q *query.Query) (*reader.SearchResult, error)
	Count(ctx context.Context, q *query.Query) (int64, error)
}

// Provider serves one page of a query together with its facets, meta and
// total count. The base query is never modified.
type Provider struct {
	searcher   Searcher
	query      *query.Query
	pagination *Pagination
	logger     *slog.Logger

	result      *reader.SearchResult
	total       int64
	hasTotal    bool
	appliedPage int
}

// NewProvider returns a provider for q. A nil pagination runs q untouched.
func NewProvider(s Searcher, q *query.Query, p *Pagination) (*Provider, error) {
	if q == nil {
		return nil, pkgerrors.Configf("data provider needs a query")
	}
	if s == nil {
		return nil, pkgerrors.Configf("data provider needs a searcher")
	}
	return &Provider{
		searcher:   s,
		query:      q,
		pagination: p,
		logger:     slog.Default().With("component", "pagination"),
	}, nil
}

// Prepare runs the search once. Later calls are no-ops.
func (p *Provider) Prepare(ctx context.Context) error {
	if p.result != nil {
		return nil
	}
	q := p.query
	if p.pagination != nil {
		if !q.Meta.Enabled {
			// The page can only be clamped before the search when the
			// total comes from a separate count.
			total, err := p.TotalCount(ctx)
			if err != nil {
				return err
			}
			p.pagination.SetTotalCount(total)
		}
		var limit, offset int
		p.appliedPage = p.pagination.CurrentPage()
		q, limit, offset = Apply(q, p.pagination)
		p.logger.Debug("applied pagination",
			"page", p.appliedPage,
			"limit", limit,
			"offset", offset,
		)
	}

	res, err := p.searcher.Search(ctx, q)
	if err != nil {
		return err
	}
	p.result = res

	if p.pagination != nil {
		total, err := p.TotalCount(ctx)
		if err != nil {
			p.result = nil
			return err
		}
		p.pagination.SetTotalCount(total)
	}
	return nil
}

// TotalCount returns the number of matches across all pages. With SHOW META
// it is read from total_found, falling back to total; otherwise, or when
// neither is present, a count query is run. The value is cached.
func (p *Provider) TotalCount(ctx context.Context) (int64, error) {
	if p.hasTotal {
		return p.total, nil
	}
	if p.query.Meta.Enabled {
		if p.result == nil {
			if err := p.Prepare(ctx); err != nil {
				return 0, err
			}
			if p.hasTotal {
				return p.total, nil
			}
		}
		if n, ok := p.result.TotalFound(); ok {
			p.setTotal(n)
			return n, nil
		}
		p.logger.Debug("meta carries no total, running count query")
	}
	n, err := p.searcher.Count(ctx, CountQuery(p.query))
	if err != nil {
		return 0, fmt.Errorf("count total: %w", err)
	}
	p.setTotal(n)
	return n, nil
}

func (p *Provider) setTotal(n int64) {
	p.total = n
	p.hasTotal = true
}

func (p *Provider) Pagination() *Pagination { return p.pagination }

// Page is the page the hits were fetched for, or 0 without pagination. With
// SHOW META the total arrives after the search, so it may exceed
// Pagination().PageCount(); see OutOfRange.
func (p *Provider) Page() int { return p.appliedPage }

// OutOfRange reports that the fetched page lies past the last page.
func (p *Provider) OutOfRange() bool {
	if p.pagination == nil || p.appliedPage <= 1 {
		return false
	}
	_, ok := p.pagination.TotalCount()
	return ok && p.appliedPage > p.pagination.PageCount()
}

// Result is nil until Prepare succeeds.
func (p *Provider) Result() *reader.SearchResult { return p.result }

func (p *Provider) Hits() []query.Row {
	if p.result == nil {
		return nil
	}
	return p.result.Hits()
}

func (p *Provider) Facets() map[string][]reader.FacetEntry {
	if p.result == nil {
		return nil
	}
	return p.result.Facets()
}

func (p *Provider) Facet(name string) ([]reader.FacetEntry, error) {
	if p.result == nil {
		return nil, pkgerrors.Configf("facet %q requested before the provider was prepared", name)
	}
	return p.result.Facet(name)
}

func (p *Provider) Meta() map[string]string {
	if p.result == nil {
		return nil
	}
	return p.result.Meta()
}
