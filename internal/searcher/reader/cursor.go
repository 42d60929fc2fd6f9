// Package reader consumes the multi-result-set stream produced by a compiled
// batch and reconciles it into a SearchResult.
package reader

import (
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// Cursor is a forward-only stream of result sets. *sql.Rows satisfies it.
type Cursor interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	NextResultSet() bool
	Err() error
	Close() error
}

// ResultSet is one fully read result set.
type ResultSet struct {
	Columns []string
	Rows    []query.Row
}

// ResultSets hands out the sets of a cursor one at a time. Each call to Next
// consumes a whole set.
type ResultSets struct {
	cur     Cursor
	started bool
	read    int
}

func NewResultSets(cur Cursor) *ResultSets {
	return &ResultSets{cur: cur}
}

// Read is the number of result sets consumed so far.
func (r *ResultSets) Read() int { return r.read }

// Next reads the next result set in full.
func (r *ResultSets) Next() (*ResultSet, error) {
	if r.started {
		if !r.cur.NextResultSet() {
			if err := r.cur.Err(); err != nil {
				return nil, pkgerrors.Upstream("advance to result set "+strconv.Itoa(r.read+1), err)
			}
			return nil, pkgerrors.Protocolf("expected result set %d, stream ended after %d", r.read+1, r.read)
		}
	}
	r.started = true

	cols, err := r.cur.Columns()
	if err != nil {
		if cerr := r.cur.Err(); cerr != nil {
			return nil, pkgerrors.Upstream("read columns", cerr)
		}
		return nil, pkgerrors.Protocolf("result set %d has no columns: %v", r.read+1, err)
	}

	set := &ResultSet{Columns: cols, Rows: []query.Row{}}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for r.cur.Next() {
		if err := r.cur.Scan(ptrs...); err != nil {
			return nil, pkgerrors.Upstream("scan row", err)
		}
		row := make(query.Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		set.Rows = append(set.Rows, row)
	}
	if err := r.cur.Err(); err != nil {
		return nil, pkgerrors.Upstream("read result set "+strconv.Itoa(r.read+1), err)
	}
	r.read++
	return set, nil
}

// Finish fails when the cursor still holds result sets nobody asked for.
func (r *ResultSets) Finish() error {
	if r.started && r.cur.NextResultSet() {
		return pkgerrors.Protocolf("unexpected result set after %d expected", r.read)
	}
	if err := r.cur.Err(); err != nil {
		return pkgerrors.Upstream("finish batch", err)
	}
	return nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
