package executor

import (
	"context"
	"database/sql"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/reader"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/resilience"
)

// Backend executes SphinxQL and hands back the result set stream.
type Backend interface {
	Query(ctx context.Context, sql string, args ...any) (reader.Cursor, error)
}

// Querier is satisfied by *sql.DB and *sphinx.Client.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlBackend struct {
	db Querier
}

// SQLBackend runs statements through database/sql. The driver must allow
// multi statements for batches with SHOW META.
func SQLBackend(db Querier) Backend {
	return sqlBackend{db: db}
}

func (b sqlBackend) Query(ctx context.Context, sql string, args ...any) (reader.Cursor, error) {
	rows, err := b.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, pkgerrors.Upstream("query searchd", err)
	}
	return rows, nil
}

// guarded routes single-statement calls, such as CALL SNIPPETS, through the
// breaker.
type guarded struct {
	backend Backend
	breaker *resilience.CircuitBreaker
}

func (g guarded) Query(ctx context.Context, sql string, args ...any) (reader.Cursor, error) {
	if g.breaker == nil {
		return g.backend.Query(ctx, sql, args...)
	}
	var cur reader.Cursor
	err := g.breaker.Execute(func() error {
		var err error
		cur, err = g.backend.Query(ctx, sql, args...)
		return err
	})
	return cur, err
}
