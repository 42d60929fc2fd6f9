package query

// Condition is a node of a WHERE or HAVING predicate tree. The compiler
// renders the concrete types below; anything else is rejected.
type Condition interface {
	condition()
}

// Compare is `column op value`, op being one of = != < <= > >=.
type Compare struct {
	Column string
	Op     string
	Value  any
}

// In is `column IN (values...)`. An empty value list never matches.
type In struct {
	Column string
	Values []any
	Not    bool
}

// Between is `column BETWEEN low AND high`.
type Between struct {
	Column string
	Low    any
	High   any
}

// And joins conditions with AND. Nil members are skipped.
type And []Condition

// Or joins conditions with OR. Nil members are skipped.
type Or []Condition

// Expression is raw SphinxQL with positional `?` placeholders.
type Expression struct {
	SQL  string
	Args []any
}

func (Compare) condition()    {}
func (In) condition()         {}
func (Between) condition()    {}
func (And) condition()        {}
func (Or) condition()         {}
func (Expression) condition() {}

func Eq(column string, value any) Compare { return Compare{Column: column, Op: "=", Value: value} }

func Expr(sql string, args ...any) Expression { return Expression{SQL: sql, Args: args} }

func cloneCondition(c Condition) Condition {
	switch v := c.(type) {
	case nil:
		return nil
	case In:
		v.Values = append([]any(nil), v.Values...)
		return v
	case And:
		out := make(And, len(v))
		for i, m := range v {
			out[i] = cloneCondition(m)
		}
		return out
	case Or:
		out := make(Or, len(v))
		for i, m := range v {
			out[i] = cloneCondition(m)
		}
		return out
	case Expression:
		v.Args = append([]any(nil), v.Args...)
		return v
	default:
		return c
	}
}
