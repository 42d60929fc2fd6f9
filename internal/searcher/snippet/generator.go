package snippet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// Backend executes one SphinxQL statement.
type Backend interface {
	Query(ctx context.Context, sql string, args ...any) (reader.Cursor, error)
}

// SphinxGenerator builds snippets with searchd's CALL SNIPPETS.
type SphinxGenerator struct {
	backend Backend
	logger  *slog.Logger
}

func NewSphinxGenerator(backend Backend) *SphinxGenerator {
	return &SphinxGenerator{
		backend: backend,
		logger:  slog.Default().With("component", "snippet-generator"),
	}
}

func (g *SphinxGenerator) Snippets(ctx context.Context, index string, texts []string, match string, opts query.SnippetOptions) ([]string, error) {
	st, err := compiler.CompileSnippets(index, texts, match, opts)
	if err != nil {
		return nil, err
	}
	cur, err := g.backend.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, pkgerrors.Upstream("call snippets", err)
	}
	defer cur.Close()

	sets := reader.NewResultSets(cur)
	set, err := sets.Next()
	if err != nil {
		return nil, fmt.Errorf("call snippets: %w", err)
	}
	if err := sets.Finish(); err != nil {
		return nil, fmt.Errorf("call snippets: %w", err)
	}
	if len(set.Columns) == 0 {
		return nil, pkgerrors.Protocolf("snippet result has no columns")
	}
	if len(set.Rows) != len(texts) {
		return nil, pkgerrors.Protocolf("got %d snippets for %d texts", len(set.Rows), len(texts))
	}

	col := set.Columns[0]
	out := make([]string, len(set.Rows))
	for i, row := range set.Rows {
		switch v := row[col].(type) {
		case string:
			out[i] = v
		case nil:
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	g.logger.Debug("snippets built", "index", index, "texts", len(texts))
	return out, nil
}
