// Package pagination maps page-based navigation onto SphinxQL LIMIT/OFFSET
// and the max_matches result window.
package pagination

import "github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"

const DefaultPageSize = 20

// Pagination tracks the requested page. Once a total count is known the page
// is clamped to the last existing page.
type Pagination struct {
	Page     int
	PageSize int

	total    int64
	hasTotal bool
}

// New returns a pagination for a 1-based page. A non-positive size falls back
// to DefaultPageSize.
func New(page, pageSize int) *Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

func (p *Pagination) SetTotalCount(total int64) {
	if total < 0 {
		total = 0
	}
	p.total = total
	p.hasTotal = true
}

// TotalCount reports the total and whether it has been set.
func (p *Pagination) TotalCount() (int64, bool) { return p.total, p.hasTotal }

// PageCount is 0 until a total is known.
func (p *Pagination) PageCount() int {
	if !p.hasTotal {
		return 0
	}
	size := int64(p.Limit())
	return int((p.total + size - 1) / size)
}

// CurrentPage is Page clamped to [1, PageCount].
func (p *Pagination) CurrentPage() int {
	page := p.Page
	if n := p.PageCount(); p.hasTotal && page > n {
		page = n
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Limit is PageSize, or DefaultPageSize when PageSize is not positive.
func (p *Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

func (p *Pagination) Offset() int { return (p.CurrentPage() - 1) * p.Limit() }

// Apply returns a copy of q restricted to the current page, along with the
// limit and offset it applied. Without SHOW META the result window is widened
// to offset+limit unless max_matches is already set; with SHOW META the
// window is left alone so total_found stays meaningful.
func Apply(q *query.Query, p *Pagination) (*query.Query, int, int) {
	out := q.Clone()
	limit, offset := p.Limit(), p.Offset()
	if !out.Meta.Enabled && !out.Options.Has(query.OptionMaxMatches) {
		out.Option(query.OptionMaxMatches, query.Int(offset+limit))
	}
	out.Limit(limit).Offset(offset)
	return out, limit, offset
}

// CountQuery is the copy of q used to count every match: no window, no
// ordering, no facets, no meta and no snippets.
func CountQuery(q *query.Query) *query.Query {
	out := q.Clone()
	out.Limit(query.NoLimit).Offset(query.NoLimit)
	out.OrderBy()
	out.Facets()
	out.ShowMeta(false)
	out.SnippetSource = nil
	return out
}
