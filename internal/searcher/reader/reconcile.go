package reader

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// HitShaper post-processes primary rows, e.g. to index them or attach
// related data. It must return one row per hit it keeps.
type HitShaper func(rows []query.Row) ([]query.Row, error)

// Reconcile reads exactly one result set per statement of batch, in order,
// and builds the result. The cursor is closed on return. Either the whole
// result is returned or an error; never both.
func Reconcile(cur Cursor, batch *compiler.Batch, shape HitShaper) (*SearchResult, error) {
	defer cur.Close()

	if batch == nil || batch.Len() == 0 || batch.Statements[0].Kind != compiler.KindPrimary {
		return nil, pkgerrors.Configf("batch must start with a primary statement")
	}

	sets := NewResultSets(cur)
	result := NewSearchResult(nil)
	for i, st := range batch.Statements {
		set, err := sets.Next()
		if err != nil {
			return nil, fmt.Errorf("%s statement %d: %w", st.Kind, i, err)
		}
		switch st.Kind {
		case compiler.KindPrimary:
			hits := set.Rows
			if shape != nil {
				if hits, err = shape(hits); err != nil {
					return nil, fmt.Errorf("shape hits: %w", err)
				}
			}
			result.hits = hits
		case compiler.KindFacet:
			if st.Facet == nil {
				return nil, pkgerrors.Configf("facet statement %d has no column mapping", i)
			}
			entries, err := facetEntries(set, *st.Facet)
			if err != nil {
				return nil, fmt.Errorf("facet %q: %w", st.Facet.Name, err)
			}
			result.SetFacet(st.Facet.Name, entries)
		case compiler.KindMeta:
			meta, err := metaValues(set)
			if err != nil {
				return nil, err
			}
			result.meta = meta
		default:
			return nil, pkgerrors.Configf("statement %d of kind %s does not belong in a search batch", i, st.Kind)
		}
	}
	if err := sets.Finish(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReadScalar reads a single integer from a one-row result set and closes the
// cursor.
func ReadScalar(cur Cursor) (int64, error) {
	defer cur.Close()

	sets := NewResultSets(cur)
	set, err := sets.Next()
	if err != nil {
		return 0, err
	}
	if len(set.Rows) != 1 || len(set.Columns) == 0 {
		return 0, pkgerrors.Protocolf("scalar result has %d rows and %d columns", len(set.Rows), len(set.Columns))
	}
	n, err := toInt64(set.Rows[0][set.Columns[0]])
	if err != nil {
		return 0, pkgerrors.Protocolf("scalar %q: %v", set.Columns[0], err)
	}
	if err := sets.Finish(); err != nil {
		return 0, err
	}
	return n, nil
}

func facetEntries(set *ResultSet, fc compiler.FacetColumns) ([]FacetEntry, error) {
	valueCol := findColumn(set.Columns, fc.Value)
	countCol := findColumn(set.Columns, fc.Count)
	if valueCol == "" {
		return nil, pkgerrors.Protocolf("value column %q missing from %v", fc.Value, set.Columns)
	}
	if countCol == "" {
		return nil, pkgerrors.Protocolf("count column %q missing from %v", fc.Count, set.Columns)
	}

	entries := make([]FacetEntry, 0, len(set.Rows))
	for _, row := range set.Rows {
		count, err := toInt64(row[countCol])
		if err != nil {
			return nil, pkgerrors.Protocolf("count column %q: %v", countCol, err)
		}
		e := FacetEntry{Value: row[valueCol], Count: count}
		for _, c := range set.Columns {
			if c == valueCol || c == countCol {
				continue
			}
			if e.Extra == nil {
				e.Extra = query.Row{}
			}
			e.Extra[c] = row[c]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func metaValues(set *ResultSet) (map[string]string, error) {
	if len(set.Columns) != 2 {
		return nil, pkgerrors.Protocolf("meta result has %d columns, want 2", len(set.Columns))
	}
	name, value := set.Columns[0], set.Columns[1]
	meta := make(map[string]string, len(set.Rows))
	for _, row := range set.Rows {
		key, ok := row[name].(string)
		if !ok {
			return nil, pkgerrors.Protocolf("meta variable name has type %T", row[name])
		}
		if v := row[value]; v != nil {
			meta[key] = fmt.Sprint(v)
		} else {
			meta[key] = ""
		}
	}
	return meta, nil
}

// findColumn matches name against cols ignoring case, returning the column
// as the engine spelled it.
func findColumn(cols []string, name string) string {
	for _, c := range cols {
		if c == name {
			return c
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("value of type %T is not an integer", v)
	}
}
