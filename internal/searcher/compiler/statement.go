package compiler

import "strings"

// Kind identifies which result set a statement produces.
type Kind int

const (
	KindPrimary Kind = iota
	KindFacet
	KindMeta
	KindCount
	KindSnippets
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindFacet:
		return "facet"
	case KindMeta:
		return "meta"
	case KindCount:
		return "count"
	case KindSnippets:
		return "snippets"
	default:
		return "unknown"
	}
}

// FacetColumns are the facet's label and the result columns the reader
// renames to value and count.
type FacetColumns struct {
	Name  string
	Value string
	Count string
}

// Statement is one unit of the batch; each yields exactly one result set.
type Statement struct {
	Kind  Kind
	SQL   string
	Args  []any
	Facet *FacetColumns
}

// Batch is the ordered statement list [primary, facet_1..facet_n, meta?].
type Batch struct {
	Statements []Statement
}

// Len is the number of result sets the batch produces.
func (b *Batch) Len() int { return len(b.Statements) }

// Facets returns the facet statements in declaration order.
func (b *Batch) Facets() []Statement {
	var out []Statement
	for _, s := range b.Statements {
		if s.Kind == KindFacet {
			out = append(out, s)
		}
	}
	return out
}

// HasMeta reports whether the batch ends with SHOW META.
func (b *Batch) HasMeta() bool {
	n := len(b.Statements)
	return n > 0 && b.Statements[n-1].Kind == KindMeta
}

// SQL renders the batch as sent to searchd. FACET clauses extend the
// primary SELECT, SHOW META follows as a separate statement. Args are in
// placeholder order.
func (b *Batch) SQL() (string, []any) {
	var sb strings.Builder
	var args []any
	for i, s := range b.Statements {
		switch {
		case i == 0:
		case s.Kind == KindFacet:
			sb.WriteByte(' ')
		default:
			sb.WriteString("; ")
		}
		sb.WriteString(s.SQL)
		args = append(args, s.Args...)
	}
	return sb.String(), args
}
