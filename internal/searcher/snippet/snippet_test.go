package snippet

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader/readertest"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

type recordingGenerator struct {
	calls int
	index string
	texts []string
	match string
}

func (g *recordingGenerator) Snippets(_ context.Context, index string, texts []string, match string, _ query.SnippetOptions) ([]string, error) {
	g.calls++
	g.index, g.texts, g.match = index, texts, match
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "<b>" + t + "</b>"
	}
	return out, nil
}

func sourceOf(sources ...query.Source) query.SourceFunc {
	return func(context.Context, []query.Row) ([]query.Source, error) { return sources, nil }
}

func TestFlattenModes(t *testing.T) {
	texts, paths, err := Flatten([]query.Source{query.Text("a"), query.Text("b")})
	if err != nil || paths != nil || !reflect.DeepEqual(texts, []string{"a", "b"}) {
		t.Errorf("text mode = %v, %v, %v", texts, paths, err)
	}

	texts, paths, err = Flatten([]query.Source{
		query.Fields(query.Field{Path: "title", Text: "t0"}, query.Field{Path: "body", Text: "b0"}),
		query.Fields(query.Field{Path: "title", Text: "t1"}, query.Field{Path: "body", Text: "b1"}),
	})
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !reflect.DeepEqual(texts, []string{"t0", "b0", "t1", "b1"}) || !reflect.DeepEqual(paths, []string{"title", "body"}) {
		t.Errorf("field mode = %v, %v", texts, paths)
	}
}

func TestFlattenRejectsInconsistentSources(t *testing.T) {
	tests := []struct {
		name    string
		sources []query.Source
	}{
		{"text then fields", []query.Source{query.Text("a"), query.Fields(query.Field{Path: "x"})}},
		{"fields then text", []query.Source{query.Fields(query.Field{Path: "x"}), query.Text("a")}},
		{"different paths", []query.Source{
			query.Fields(query.Field{Path: "x"}, query.Field{Path: "y"}),
			query.Fields(query.Field{Path: "x"}, query.Field{Path: "z"}),
		}},
		{"different order", []query.Source{
			query.Fields(query.Field{Path: "x"}, query.Field{Path: "y"}),
			query.Fields(query.Field{Path: "y"}, query.Field{Path: "x"}),
		}},
		{"missing field", []query.Source{
			query.Fields(query.Field{Path: "x"}, query.Field{Path: "y"}),
			query.Fields(query.Field{Path: "x"}),
		}},
		{"no fields", []query.Source{query.Fields()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Flatten(tt.sources); !errors.Is(err, pkgerrors.ErrConfiguration) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestFillSingleField(t *testing.T) {
	rows := []query.Row{{"id": int64(1), "title": "one"}, {"id": int64(2), "title": "two"}}
	q := query.New("article_index").Matching("one").
		Snippets(sourceOf(query.Text("one text"), query.Text("two text")), query.SnippetOptions{})
	gen := &recordingGenerator{}

	if err := Fill(context.Background(), rows, q, gen); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if gen.calls != 1 || gen.index != "article_index" || gen.match != "one" {
		t.Errorf("generator saw calls=%d index=%q match=%q", gen.calls, gen.index, gen.match)
	}
	for i, want := range []string{"<b>one text</b>", "<b>two text</b>"} {
		if rows[i][query.SnippetKey] != want {
			t.Errorf("row %d snippet = %v", i, rows[i][query.SnippetKey])
		}
	}
	if rows[0]["title"] != "one" || rows[1]["title"] != "two" || len(rows[0]) != 3 {
		t.Errorf("single-field snippets mutated rows: %v", rows)
	}
}

func TestFillMultiFieldRedistribution(t *testing.T) {
	rows := []query.Row{
		{"id": int64(1), "title": "t0", "source": map[string]any{"content": "c0"}},
		{"id": int64(2), "title": "t1", "source": map[string]any{"content": "c1"}},
	}
	q := query.New("idx").Matching("x").Snippets(sourceOf(
		query.Fields(query.Field{Path: "title", Text: "t0"}, query.Field{Path: "source.content", Text: "c0"}),
		query.Fields(query.Field{Path: "title", Text: "t1"}, query.Field{Path: "source.content", Text: "c1"}),
	), query.SnippetOptions{})
	gen := &recordingGenerator{}

	if err := Fill(context.Background(), rows, q, gen); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if gen.calls != 1 || len(gen.texts) != 4 {
		t.Fatalf("calls = %d, texts = %v", gen.calls, gen.texts)
	}
	if !reflect.DeepEqual(gen.texts, []string{"t0", "c0", "t1", "c1"}) {
		t.Errorf("flattened order = %v", gen.texts)
	}

	for i, row := range rows {
		snip := row[query.SnippetKey].(map[string]string)
		title := "<b>t" + string(rune('0'+i)) + "</b>"
		content := "<b>c" + string(rune('0'+i)) + "</b>"
		if snip["title"] != title || snip["source.content"] != content {
			t.Errorf("row %d snippet map = %v", i, snip)
		}
		if row["title"] != title {
			t.Errorf("row %d title not overwritten: %v", i, row["title"])
		}
		if row["source"].(map[string]any)["content"] != content {
			t.Errorf("row %d nested content not overwritten: %v", i, row["source"])
		}
	}
}

func TestRedistributeStopsAtFirstString(t *testing.T) {
	rows := []query.Row{{"meta": "flat", "n": int64(3)}}
	if err := Redistribute(rows, []string{"meta.deep", "n.x"}, []string{"S", "T"}); err != nil {
		t.Fatalf("Redistribute: %v", err)
	}
	if rows[0]["meta"] != "S" {
		t.Errorf("meta = %v", rows[0]["meta"])
	}
	if rows[0]["n"] != int64(3) {
		t.Errorf("non-string value touched: %v", rows[0]["n"])
	}

	if err := Redistribute(rows, nil, []string{"a", "b"}); !errors.Is(err, pkgerrors.ErrProtocol) {
		t.Errorf("count mismatch err = %v", err)
	}
}

func TestFillNoOps(t *testing.T) {
	gen := &recordingGenerator{}
	rows := []query.Row{{"id": int64(1)}}
	if err := Fill(context.Background(), rows, query.New("idx").Matching("x"), gen); err != nil {
		t.Errorf("no source: %v", err)
	}
	q := query.New("idx").Matching("x").Snippets(sourceOf(), query.SnippetOptions{})
	if err := Fill(context.Background(), nil, q, gen); err != nil {
		t.Errorf("no hits: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times", gen.calls)
	}
	if _, ok := rows[0][query.SnippetKey]; ok {
		t.Error("snippet attached without a source")
	}
}

func TestFillRequiresMatch(t *testing.T) {
	q := query.New("idx").Snippets(sourceOf(query.Text("a")), query.SnippetOptions{Limit: 100})
	err := Fill(context.Background(), []query.Row{{"id": int64(1)}}, q, &recordingGenerator{})
	if !errors.Is(err, pkgerrors.ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
}

func TestFillSourceLengthMismatch(t *testing.T) {
	q := query.New("idx").Matching("x").Snippets(sourceOf(query.Text("a")), query.SnippetOptions{})
	err := Fill(context.Background(), []query.Row{{"id": int64(1)}, {"id": int64(2)}}, q, &recordingGenerator{})
	if !errors.Is(err, pkgerrors.ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
}

type fakeBackend struct {
	sql  string
	args []any
	cur  reader.Cursor
	err  error
}

func (b *fakeBackend) Query(_ context.Context, sql string, args ...any) (reader.Cursor, error) {
	b.sql, b.args = sql, args
	if b.err != nil {
		return nil, b.err
	}
	return b.cur, nil
}

func TestSphinxGenerator(t *testing.T) {
	b := &fakeBackend{cur: readertest.NewCursor(readertest.Set{
		Columns: []string{"snippet"},
		Rows:    [][]any{{[]byte("<b>a</b>")}, {[]byte("b")}},
	})}
	gen := NewSphinxGenerator(b)
	out, err := gen.Snippets(context.Background(), "idx", []string{"a", "b"}, "a", query.SnippetOptions{BeforeMatch: "<b>"})
	if err != nil {
		t.Fatalf("Snippets: %v", err)
	}
	if !reflect.DeepEqual(out, []string{"<b>a</b>", "b"}) {
		t.Errorf("out = %v", out)
	}
	if !strings.HasPrefix(b.sql, "CALL SNIPPETS((?, ?), ?, ?") {
		t.Errorf("sql = %q", b.sql)
	}
}

func TestSphinxGeneratorErrors(t *testing.T) {
	short := &fakeBackend{cur: readertest.NewCursor(readertest.Set{Columns: []string{"snippet"}, Rows: [][]any{{"x"}}})}
	if _, err := NewSphinxGenerator(short).Snippets(context.Background(), "idx", []string{"a", "b"}, "a", query.SnippetOptions{}); !errors.Is(err, pkgerrors.ErrProtocol) {
		t.Errorf("short result err = %v", err)
	}

	down := &fakeBackend{err: errors.New("connection refused")}
	if _, err := NewSphinxGenerator(down).Snippets(context.Background(), "idx", []string{"a"}, "a", query.SnippetOptions{}); !errors.Is(err, pkgerrors.ErrUpstream) {
		t.Errorf("backend failure err = %v", err)
	}
}

func TestSourceQuery(t *testing.T) {
	got := sourceQuery(SourceConfig{Table: "articles", IDColumn: "id", Fields: []string{"title", "content"}})
	want := `SELECT "id", "title", "content" FROM "articles" WHERE "id" = ANY($1)`
	if got != want {
		t.Errorf("sql = %q, want %q", got, want)
	}
}

func TestHitIDs(t *testing.T) {
	ids, err := hitIDs([]query.Row{{"id": int64(4)}, {"id": "5"}, {"id": 6}}, "id")
	if err != nil || !reflect.DeepEqual(ids, []int64{4, 5, 6}) {
		t.Errorf("ids = %v, %v", ids, err)
	}
	if _, err := hitIDs([]query.Row{{"other": 1}}, "id"); !errors.Is(err, pkgerrors.ErrConfiguration) {
		t.Errorf("missing id err = %v", err)
	}
}
