// Package compiler turns a query.Query into the ordered SphinxQL statement
// batch searchd executes: the primary SELECT, one FACET per requested facet
// and an optional SHOW META. It also builds the scalar COUNT(*) statement
// and CALL SNIPPETS. Compilation is pure; no statement is executed here.
package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// DefaultWindow is searchd's default max_matches. It bounds LIMIT when only
// an offset is given.
const DefaultWindow = 1000

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var compareOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) bind(v any) {
	b.sb.WriteByte('?')
	b.args = append(b.args, v)
}

func (b *builder) statement(kind Kind) Statement {
	return Statement{Kind: kind, SQL: b.sb.String(), Args: b.args}
}

// Compile builds the search batch for q.
func Compile(q *query.Query) (*Batch, error) {
	if err := validate(q); err != nil {
		return nil, err
	}
	b := &builder{}
	if err := writeSelect(b, q, selectColumns(q.Select.Columns), true); err != nil {
		return nil, err
	}
	batch := &Batch{Statements: []Statement{b.statement(KindPrimary)}}

	for i, f := range q.FacetList() {
		st, err := compileFacet(f)
		if err != nil {
			return nil, fmt.Errorf("facet %d (%q): %w", i, f.Label(), err)
		}
		batch.Statements = append(batch.Statements, st)
	}
	if q.Meta.Enabled {
		batch.Statements = append(batch.Statements, compileMeta(q.Meta))
	}
	return batch, nil
}

// CompileCount builds a statement returning the number of rows q matches as
// a single scalar. Grouped and distinct queries are counted through a
// subselect so that groups, not matches, are counted.
func CompileCount(q *query.Query) (Statement, error) {
	if err := validate(q); err != nil {
		return Statement{}, err
	}
	b := &builder{}
	if len(q.Select.GroupBy) > 0 || q.Select.Distinct {
		inner := q.Clone()
		if inner.Select.Limit <= 0 && inner.Select.Offset <= 0 {
			// searchd applies an implicit LIMIT 20 otherwise.
			inner.Select.Limit = int(window(&inner.Options))
		}
		b.write("SELECT COUNT(*) FROM (")
		if err := writeSelect(b, inner, selectColumns(inner.Select.Columns), true); err != nil {
			return Statement{}, err
		}
		b.write(")")
		return b.statement(KindCount), nil
	}
	flat := q.Clone()
	flat.Select.OrderBy = nil
	flat.Within = nil
	flat.Select.Limit = 0
	flat.Select.Offset = 0
	if err := writeSelect(b, flat, "COUNT(*)", false); err != nil {
		return Statement{}, err
	}
	return b.statement(KindCount), nil
}

func validate(q *query.Query) error {
	if q == nil {
		return pkgerrors.Configf("query is nil")
	}
	if len(q.Select.From) == 0 {
		return pkgerrors.Configf("query has no index to select from")
	}
	if len(q.Select.Joins) > 0 {
		return pkgerrors.Configf("%s is not supported by SphinxQL", q.Select.Joins[0].Kind)
	}
	if len(q.Select.Union) > 0 {
		return pkgerrors.Configf("UNION is not supported by SphinxQL")
	}
	return nil
}

func writeSelect(b *builder, q *query.Query, columns string, withWindow bool) error {
	b.write("SELECT ")
	if q.Select.Distinct {
		b.write("DISTINCT ")
	}
	b.write(columns, " FROM ", quoteList(q.Select.From))

	if err := writeWhere(b, q); err != nil {
		return err
	}
	if len(q.Select.GroupBy) > 0 {
		b.write(" GROUP BY ", quoteList(q.Select.GroupBy))
	}
	if len(q.Within) > 0 {
		b.write(" WITHIN GROUP ORDER BY ", orderList(q.Within))
	}
	if q.Select.Having != nil {
		var hb builder
		if err := writeCondition(&hb, q.Select.Having); err != nil {
			return fmt.Errorf("having: %w", err)
		}
		if hb.sb.Len() > 0 {
			b.write(" HAVING ", hb.sb.String())
			b.args = append(b.args, hb.args...)
		}
	}
	if len(q.Select.OrderBy) > 0 {
		b.write(" ORDER BY ", orderList(q.Select.OrderBy))
	}
	if withWindow {
		if err := writeLimit(b, q); err != nil {
			return err
		}
	}
	return writeOptions(b, &q.Options)
}

func writeWhere(b *builder, q *query.Query) error {
	var cond builder
	if q.Select.Where != nil {
		if err := writeCondition(&cond, q.Select.Where); err != nil {
			return fmt.Errorf("where: %w", err)
		}
	}
	hasMatch := !q.Match.IsZero()
	if !hasMatch && cond.sb.Len() == 0 {
		return nil
	}
	b.write(" WHERE ")
	if hasMatch {
		if q.Match.Expr != nil {
			b.write("MATCH(", q.Match.Expr.SQL, ")")
			b.args = append(b.args, q.Match.Expr.Args...)
		} else {
			b.write("MATCH(")
			b.bind(EscapeMatch(q.Match.Text))
			b.write(")")
		}
		if cond.sb.Len() > 0 {
			b.write(" AND ")
		}
	}
	if cond.sb.Len() > 0 {
		if _, isOr := q.Select.Where.(query.Or); isOr && hasMatch {
			b.write("(", cond.sb.String(), ")")
		} else {
			b.write(cond.sb.String())
		}
		b.args = append(b.args, cond.args...)
	}
	return nil
}

func writeCondition(b *builder, c query.Condition) error {
	switch v := c.(type) {
	case nil:
		return nil
	case query.Compare:
		op := strings.TrimSpace(v.Op)
		if !compareOps[op] {
			return pkgerrors.Configf("unsupported comparison operator %q on %s", v.Op, v.Column)
		}
		b.write(quoteColumn(v.Column), " ", op, " ")
		b.bind(v.Value)
	case query.In:
		if len(v.Values) == 0 {
			return pkgerrors.Configf("IN on %s has no values", v.Column)
		}
		b.write(quoteColumn(v.Column))
		if v.Not {
			b.write(" NOT")
		}
		b.write(" IN (")
		for i, val := range v.Values {
			if i > 0 {
				b.write(", ")
			}
			b.bind(val)
		}
		b.write(")")
	case query.Between:
		b.write(quoteColumn(v.Column), " BETWEEN ")
		b.bind(v.Low)
		b.write(" AND ")
		b.bind(v.High)
	case query.And:
		return writeJunction(b, " AND ", v)
	case query.Or:
		return writeJunction(b, " OR ", v)
	case query.Expression:
		b.write(v.SQL)
		b.args = append(b.args, v.Args...)
	default:
		return pkgerrors.Configf("unsupported condition type %T", c)
	}
	return nil
}

func writeJunction(b *builder, sep string, members []query.Condition) error {
	written := 0
	for _, m := range members {
		if m == nil {
			continue
		}
		var mb builder
		if err := writeCondition(&mb, m); err != nil {
			return err
		}
		if mb.sb.Len() == 0 {
			continue
		}
		if written > 0 {
			b.write(sep)
		}
		switch m.(type) {
		case query.And, query.Or:
			b.write("(", mb.sb.String(), ")")
		default:
			b.write(mb.sb.String())
		}
		b.args = append(b.args, mb.args...)
		written++
	}
	return nil
}

func writeLimit(b *builder, q *query.Query) error {
	limit, offset := q.Select.Limit, q.Select.Offset
	switch {
	case limit > 0 && offset > 0:
		b.write(" LIMIT ", strconv.Itoa(offset), ", ", strconv.Itoa(limit))
	case limit > 0:
		b.write(" LIMIT ", strconv.Itoa(limit))
	case offset > 0:
		w := window(&q.Options)
		if int64(offset) >= w {
			return pkgerrors.Configf("offset %d is beyond the result window %d", offset, w)
		}
		b.write(" LIMIT ", strconv.Itoa(offset), ", ", strconv.FormatInt(w-int64(offset), 10))
	}
	return nil
}

func window(opts *query.Options) int64 {
	if n, ok := opts.MaxMatches(); ok && n > 0 {
		return n
	}
	return DefaultWindow
}

func writeOptions(b *builder, opts *query.Options) error {
	if opts.Len() == 0 {
		return nil
	}
	var err error
	b.write(" OPTION ")
	i := 0
	opts.Each(func(key query.OptionKey, value query.OptionValue) {
		if err != nil {
			return
		}
		if i > 0 {
			b.write(", ")
		}
		i++
		b.write(string(key), "=")
		switch v := value.(type) {
		case query.Int:
			b.write(strconv.FormatInt(int64(v), 10))
		case query.Float:
			b.write(strconv.FormatFloat(float64(v), 'f', -1, 64))
		case query.String:
			b.bind(string(v))
		case query.Expression:
			b.write(v.SQL)
			b.args = append(b.args, v.Args...)
		case query.Weights:
			b.write("(")
			for j, w := range v {
				if j > 0 {
					b.write(", ")
				}
				b.write(w.Name, "=", strconv.Itoa(w.Value))
			}
			b.write(")")
		default:
			err = pkgerrors.Configf("option %s has unsupported value type %T", key, value)
		}
	})
	return err
}

func compileFacet(f query.Facet) (Statement, error) {
	expr := f.SelectExpr()
	if expr == "" {
		return Statement{}, pkgerrors.Configf("facet has neither a column, a select expression nor a name")
	}
	b := &builder{}
	b.write("FACET ", quoteColumn(expr))
	if len(f.OrderBy) > 0 {
		b.write(" ORDER BY ", orderList(f.OrderBy))
	}
	if f.Limit > 0 {
		b.write(" LIMIT ", strconv.Itoa(f.Limit))
	}
	st := b.statement(KindFacet)
	st.Facet = &FacetColumns{
		Name:  f.Label(),
		Value: f.ValueColumn(),
		Count: f.CountColumn(),
	}
	return st, nil
}

func compileMeta(m query.Meta) Statement {
	b := &builder{}
	b.write("SHOW META")
	if m.Like != "" {
		b.write(" LIKE ")
		b.bind(m.Like)
	}
	return b.statement(KindMeta)
}

func selectColumns(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return quoteList(columns)
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteColumn(n)
	}
	return strings.Join(quoted, ", ")
}

func orderList(cols []query.OrderColumn) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quoteColumn(c.Column) + " " + c.Direction.String()
	}
	return strings.Join(parts, ", ")
}

// quoteColumn backtick-quotes plain identifiers. Expressions, aliases and *
// pass through untouched.
func quoteColumn(name string) string {
	name = strings.TrimSpace(name)
	if plainIdent.MatchString(name) {
		return "`" + name + "`"
	}
	return name
}
