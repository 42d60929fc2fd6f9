// Package query models a SphinxQL search request: the relational SELECT
// part, the full-text MATCH, WITHIN GROUP ordering, OPTION directives, FACET
// groupings, SHOW META and the snippet configuration.
//
// Setters return the receiver so requests can be built fluently:
//
//	q := query.New("article_index").
//		Matching("pencil").
//		Facets(query.FacetOn("author_id")).
//		ShowMeta(true)
//
// A Query is not safe for concurrent mutation. Anything that needs to adjust a
// request (pagination, counting) works on a Clone.
package query

// NoLimit disables LIMIT or OFFSET.
const NoLimit = -1

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderColumn is one ORDER BY term. Column may be an expression such as
// weight().
type OrderColumn struct {
	Column    string
	Direction Direction
}

func AscBy(column string) OrderColumn  { return OrderColumn{Column: column, Direction: Asc} }
func DescBy(column string) OrderColumn { return OrderColumn{Column: column, Direction: Desc} }

type JoinKind string

const (
	JoinPlain JoinKind = "JOIN"
	JoinInner JoinKind = "INNER JOIN"
	JoinLeft  JoinKind = "LEFT JOIN"
	JoinRight JoinKind = "RIGHT JOIN"
)

// Join records a requested join. SphinxQL cannot express joins; the compiler
// rejects any query carrying one.
type Join struct {
	Kind  JoinKind
	Table string
	On    string
}

// Select is the generic relational part of a request.
type Select struct {
	Columns  []string
	From     []string
	Where    Condition
	GroupBy  []string
	Having   Condition
	OrderBy  []OrderColumn
	Distinct bool
	Union    []*Query
	Joins    []Join
	// Limit and Offset are emitted only when positive.
	Limit  int
	Offset int
}

// Match is the full-text query. Text is escaped when compiled; Expr is
// emitted verbatim inside MATCH().
type Match struct {
	Text string
	Expr *Expression
}

func (m Match) IsZero() bool { return m.Text == "" && m.Expr == nil }

// Keywords returns the text used as the highlight target when building
// snippets.
func (m Match) Keywords() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Expr == nil {
		return ""
	}
	for _, arg := range m.Expr.Args {
		if s, ok := arg.(string); ok {
			return s
		}
	}
	return m.Expr.SQL
}

// Meta controls the trailing SHOW META statement.
type Meta struct {
	Enabled bool
	Like    string
}

type Query struct {
	Select

	Match   Match
	Within  []OrderColumn
	Options Options
	Meta    Meta

	facets []Facet

	SnippetSource  SourceFunc
	SnippetOptions SnippetOptions
	// SnippetIndex overrides From[0] as the CALL SNIPPETS index.
	SnippetIndex string
}

// New returns a query selecting from the given indexes.
func New(from ...string) *Query {
	return &Query{Select: Select{From: from}}
}

func (q *Query) Columns(columns ...string) *Query {
	q.Select.Columns = columns
	return q
}

func (q *Query) From(indexes ...string) *Query {
	q.Select.From = indexes
	return q
}

func (q *Query) Where(c Condition) *Query {
	q.Select.Where = c
	return q
}

// AndWhere combines c with the existing predicate.
func (q *Query) AndWhere(c Condition) *Query {
	switch existing := q.Select.Where.(type) {
	case nil:
		q.Select.Where = c
	case And:
		q.Select.Where = append(append(And(nil), existing...), c)
	default:
		q.Select.Where = And{existing, c}
	}
	return q
}

func (q *Query) GroupBy(columns ...string) *Query {
	q.Select.GroupBy = columns
	return q
}

func (q *Query) Having(c Condition) *Query {
	q.Select.Having = c
	return q
}

func (q *Query) OrderBy(columns ...OrderColumn) *Query {
	q.Select.OrderBy = columns
	return q
}

func (q *Query) Distinct(distinct bool) *Query {
	q.Select.Distinct = distinct
	return q
}

func (q *Query) Union(other *Query) *Query {
	q.Select.Union = append(q.Select.Union, other)
	return q
}

func (q *Query) Limit(limit int) *Query {
	q.Select.Limit = limit
	return q
}

func (q *Query) Offset(offset int) *Query {
	q.Select.Offset = offset
	return q
}

func (q *Query) Join(kind JoinKind, table, on string) *Query {
	q.Select.Joins = append(q.Select.Joins, Join{Kind: kind, Table: table, On: on})
	return q
}

func (q *Query) InnerJoin(table, on string) *Query { return q.Join(JoinInner, table, on) }
func (q *Query) LeftJoin(table, on string) *Query  { return q.Join(JoinLeft, table, on) }
func (q *Query) RightJoin(table, on string) *Query { return q.Join(JoinRight, table, on) }

// Matching sets plain full-text query text.
func (q *Query) Matching(text string) *Query {
	q.Match = Match{Text: text}
	return q
}

// MatchExpr sets a raw MATCH expression, e.g. Expr("?", "@(title) pencil").
func (q *Query) MatchExpr(expr Expression) *Query {
	q.Match = Match{Expr: &expr}
	return q
}

func (q *Query) WithinGroupOrderBy(columns ...OrderColumn) *Query {
	q.Within = columns
	return q
}

func (q *Query) AddWithin(columns ...OrderColumn) *Query {
	q.Within = append(q.Within, columns...)
	return q
}

func (q *Query) Option(key OptionKey, value OptionValue) *Query {
	q.Options.Set(key, value)
	return q
}

// Facets replaces the facet list. Duplicate labels collapse last-wins.
func (q *Query) Facets(facets ...Facet) *Query {
	q.facets = mergeFacets(nil, facets)
	return q
}

// AddFacets merges facets into the existing list, last-wins per label.
func (q *Query) AddFacets(facets ...Facet) *Query {
	q.facets = mergeFacets(q.facets, facets)
	return q
}

// FacetList returns the facets in declaration order.
func (q *Query) FacetList() []Facet {
	return q.facets
}

func (q *Query) ShowMeta(enabled bool) *Query {
	q.Meta = Meta{Enabled: enabled}
	return q
}

// ShowMetaLike requests SHOW META filtered by a LIKE pattern.
func (q *Query) ShowMetaLike(pattern string) *Query {
	q.Meta = Meta{Enabled: true, Like: pattern}
	return q
}

func (q *Query) Snippets(source SourceFunc, opts SnippetOptions) *Query {
	q.SnippetSource = source
	q.SnippetOptions = opts
	return q
}

// SnippetSourceIndex is the index CALL SNIPPETS tokenizes with.
func (q *Query) SnippetSourceIndex() string {
	if q.SnippetIndex != "" {
		return q.SnippetIndex
	}
	if len(q.Select.From) > 0 {
		return q.Select.From[0]
	}
	return ""
}

// Clone returns a deep copy that shares no mutable state with q. Only the
// snippet source function is shared.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	out := *q
	out.Select.Columns = append([]string(nil), q.Select.Columns...)
	out.Select.From = append([]string(nil), q.Select.From...)
	out.Select.Where = cloneCondition(q.Select.Where)
	out.Select.GroupBy = append([]string(nil), q.Select.GroupBy...)
	out.Select.Having = cloneCondition(q.Select.Having)
	out.Select.OrderBy = append([]OrderColumn(nil), q.Select.OrderBy...)
	out.Select.Joins = append([]Join(nil), q.Select.Joins...)
	if q.Select.Union != nil {
		out.Select.Union = make([]*Query, len(q.Select.Union))
		for i, u := range q.Select.Union {
			out.Select.Union[i] = u.Clone()
		}
	}
	if q.Match.Expr != nil {
		expr := *q.Match.Expr
		expr.Args = append([]any(nil), expr.Args...)
		out.Match.Expr = &expr
	}
	out.Within = append([]OrderColumn(nil), q.Within...)
	out.Options = q.Options.clone()
	out.facets = make([]Facet, len(q.facets))
	for i, f := range q.facets {
		out.facets[i] = f.clone()
	}
	return &out
}
