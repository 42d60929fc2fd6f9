package reader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// FacetEntry is one bucket of a facet. Extra carries columns other than the
// value and count.
type FacetEntry struct {
	Value any       `json:"value"`
	Count int64     `json:"count"`
	Extra query.Row `json:"extra,omitempty"`
}

// SearchResult is the reconciled outcome of one batch.
type SearchResult struct {
	hits       []query.Row
	facetNames []string
	facets     map[string][]FacetEntry
	meta       map[string]string
}

// NewSearchResult returns a result holding hits and nothing else.
func NewSearchResult(hits []query.Row) *SearchResult {
	if hits == nil {
		hits = []query.Row{}
	}
	return &SearchResult{hits: hits, facets: map[string][]FacetEntry{}}
}

func (r *SearchResult) Hits() []query.Row { return r.hits }

// Facets maps facet labels to their buckets.
func (r *SearchResult) Facets() map[string][]FacetEntry { return r.facets }

// FacetNames lists facet labels in declaration order.
func (r *SearchResult) FacetNames() []string { return r.facetNames }

// Facet returns the buckets of one configured facet.
func (r *SearchResult) Facet(name string) ([]FacetEntry, error) {
	entries, ok := r.facets[name]
	if !ok {
		return nil, fmt.Errorf("facet %q: %w", name, pkgerrors.ErrFacetNotFound)
	}
	return entries, nil
}

// SetFacet records the buckets of a facet, appending the label on first use.
func (r *SearchResult) SetFacet(name string, entries []FacetEntry) {
	if r.facets == nil {
		r.facets = map[string][]FacetEntry{}
	}
	if _, ok := r.facets[name]; !ok {
		r.facetNames = append(r.facetNames, name)
	}
	if entries == nil {
		entries = []FacetEntry{}
	}
	r.facets[name] = entries
}

// Meta is nil when SHOW META was not part of the batch.
func (r *SearchResult) Meta() map[string]string { return r.meta }

func (r *SearchResult) SetMeta(meta map[string]string) { r.meta = meta }

func (r *SearchResult) MetaValue(name string) (string, bool) {
	v, ok := r.meta[name]
	return v, ok
}

// TotalFound reads total_found from meta, falling back to total.
func (r *SearchResult) TotalFound() (int64, bool) {
	for _, key := range []string{"total_found", "total"} {
		v, ok := r.meta[key]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

type resultJSON struct {
	Hits       []query.Row             `json:"hits"`
	FacetNames []string                `json:"facet_names,omitempty"`
	Facets     map[string][]FacetEntry `json:"facets,omitempty"`
	Meta       map[string]string       `json:"meta,omitempty"`
}

func (r *SearchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Hits:       r.hits,
		FacetNames: r.facetNames,
		Facets:     r.facets,
		Meta:       r.meta,
	})
}

// UnmarshalJSON keeps numbers as json.Number so integer ids survive.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var v resultJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*r = *NewSearchResult(v.Hits)
	for _, name := range v.FacetNames {
		r.SetFacet(name, v.Facets[name])
	}
	r.meta = v.Meta
	return nil
}
