package snippet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// Querier is satisfied by *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SourceConfig describes where the original text of a hit lives.
type SourceConfig struct {
	Table       string
	IDColumn    string
	HitIDColumn string
	Fields      []string
}

// PostgresSource loads hit text from PostgreSQL with one query per search.
// A single field yields text sources; several fields yield field sources
// keyed by column name. Hits without a stored row get empty text.
func PostgresSource(db Querier, cfg SourceConfig) query.SourceFunc {
	stmt := sourceQuery(cfg)
	return func(ctx context.Context, rows []query.Row) ([]query.Source, error) {
		ids, err := hitIDs(rows, cfg.HitIDColumn)
		if err != nil {
			return nil, err
		}
		texts, err := loadTexts(ctx, db, stmt, ids, len(cfg.Fields))
		if err != nil {
			return nil, err
		}

		sources := make([]query.Source, len(ids))
		for i, id := range ids {
			values := texts[id]
			if values == nil {
				values = make([]string, len(cfg.Fields))
			}
			if len(cfg.Fields) == 1 {
				sources[i] = query.Text(values[0])
				continue
			}
			fields := make([]query.Field, len(cfg.Fields))
			for j, name := range cfg.Fields {
				fields[j] = query.Field{Path: name, Text: values[j]}
			}
			sources[i] = query.Fields(fields...)
		}
		return sources, nil
	}
}

func sourceQuery(cfg SourceConfig) string {
	cols := make([]string, 0, len(cfg.Fields)+1)
	cols = append(cols, pq.QuoteIdentifier(cfg.IDColumn))
	for _, f := range cfg.Fields {
		cols = append(cols, pq.QuoteIdentifier(f))
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		strings.Join(cols, ", "), pq.QuoteIdentifier(cfg.Table), pq.QuoteIdentifier(cfg.IDColumn))
}

func loadTexts(ctx context.Context, db Querier, stmt string, ids []int64, nfields int) (map[int64][]string, error) {
	rows, err := db.QueryContext(ctx, stmt, pq.Array(ids))
	if err != nil {
		return nil, pkgerrors.Upstream("load snippet sources", err)
	}
	defer rows.Close()

	out := make(map[int64][]string, len(ids))
	for rows.Next() {
		var id int64
		vals := make([]sql.NullString, nfields)
		dest := make([]any, 0, nfields+1)
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, pkgerrors.Upstream("scan snippet source", err)
		}
		texts := make([]string, nfields)
		for i, v := range vals {
			texts[i] = v.String
		}
		out[id] = texts
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Upstream("read snippet sources", err)
	}
	return out, nil
}

func hitIDs(rows []query.Row, column string) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		v, ok := row[column]
		if !ok {
			return nil, pkgerrors.Configf("hit %d has no %q column", i, column)
		}
		id, err := docID(v)
		if err != nil {
			return nil, pkgerrors.Configf("hit %d %s: %v", i, column, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func docID(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("document id of type %T", v)
	}
}
