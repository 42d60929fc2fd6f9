package query

import "context"

// Row is one result row keyed by column name. Nested maps are allowed once a
// row shaper has attached related data.
type Row map[string]any

// SnippetKey is the reserved row key snippets are attached under.
const SnippetKey = "snippet"

// Field is one path→text pair of a multi-field snippet source. Path uses dots
// to address nested row values, e.g. "source.content".
type Field struct {
	Path string
	Text string
}

// Source is the snippet input produced for one hit: a single text, or an
// ordered set of fields.
type Source struct {
	text   string
	fields []Field
}

func Text(s string) Source { return Source{text: s} }

func Fields(fields ...Field) Source {
	if fields == nil {
		fields = []Field{}
	}
	return Source{fields: fields}
}

// IsFields reports whether s was built with Fields.
func (s Source) IsFields() bool { return s.fields != nil }

func (s Source) Text() string { return s.text }

func (s Source) Fields() []Field { return s.fields }

// SourceFunc produces one Source per hit, in hit order.
type SourceFunc func(ctx context.Context, rows []Row) ([]Source, error)

// SnippetOptions are passed to CALL SNIPPETS. Zero fields are omitted.
type SnippetOptions struct {
	BeforeMatch    string
	AfterMatch     string
	ChunkSeparator string
	HTMLStripMode  string
	Limit          int
	Around         int
	LimitWords     int
	ExactPhrase    bool
	QueryMode      bool
	AllowEmpty     bool
}
