package query

// DefaultFacetCount is the count column searchd reports for a facet group.
const DefaultFacetCount = "count(*)"

// Facet describes one FACET grouping requested alongside the hits.
//
// A positional facet only sets Column and is labelled by it. A named facet
// sets Name and may override the select expression, value and count columns.
type Facet struct {
	Name    string
	Column  string
	Select  string
	Value   string
	Count   string
	OrderBy []OrderColumn
	Limit   int
}

// FacetOn is the positional facet for column.
func FacetOn(column string) Facet {
	return Facet{Column: column}
}

// Label is the key the facet's rows are stored under in the result.
func (f Facet) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Column
}

// SelectExpr is what follows the FACET keyword.
func (f Facet) SelectExpr() string {
	switch {
	case f.Select != "":
		return f.Select
	case f.Column != "":
		return f.Column
	default:
		return f.Name
	}
}

// ValueColumn is the result column holding the facet value.
func (f Facet) ValueColumn() string {
	switch {
	case f.Value != "":
		return f.Value
	case f.Column != "":
		return f.Column
	default:
		return f.Name
	}
}

// CountColumn is the result column holding the group size.
func (f Facet) CountColumn() string {
	if f.Count != "" {
		return f.Count
	}
	return DefaultFacetCount
}

func (f Facet) clone() Facet {
	f.OrderBy = append([]OrderColumn(nil), f.OrderBy...)
	return f
}

// mergeFacets appends add onto base with last-wins on duplicate labels; a
// re-declared label keeps the position of its first declaration.
func mergeFacets(base []Facet, add []Facet) []Facet {
	out := make([]Facet, 0, len(base)+len(add))
	index := make(map[string]int, len(base)+len(add))
	for _, group := range [][]Facet{base, add} {
		for _, f := range group {
			if i, ok := index[f.Label()]; ok {
				out[i] = f.clone()
				continue
			}
			index[f.Label()] = len(out)
			out = append(out, f.clone())
		}
	}
	return out
}
