// Package snippet enriches hits with highlighted excerpts. Sources for every
// hit are flattened into one list, highlighted in a single generator call and
// the results written back onto the rows.
package snippet

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

// Generator highlights match in every text, returning one snippet per text
// in the same order.
type Generator interface {
	Snippets(ctx context.Context, index string, texts []string, match string, opts query.SnippetOptions) ([]string, error)
}

// Flatten turns per-hit sources into one text list. The first source decides
// the mode: for text sources paths is nil; for field sources paths holds the
// field paths shared by every hit and texts is laid out hit by hit, then path
// by path.
func Flatten(sources []query.Source) (texts []string, paths []string, err error) {
	if len(sources) == 0 {
		return nil, nil, nil
	}
	if !sources[0].IsFields() {
		texts = make([]string, len(sources))
		for i, s := range sources {
			if s.IsFields() {
				return nil, nil, pkgerrors.Configf("snippet source %d has fields, source 0 is text", i)
			}
			texts[i] = s.Text()
		}
		return texts, nil, nil
	}

	for _, f := range sources[0].Fields() {
		paths = append(paths, f.Path)
	}
	if len(paths) == 0 {
		return nil, nil, pkgerrors.Configf("snippet source 0 has no fields")
	}
	texts = make([]string, 0, len(sources)*len(paths))
	for i, s := range sources {
		if !s.IsFields() {
			return nil, nil, pkgerrors.Configf("snippet source %d is text, source 0 has fields", i)
		}
		fields := s.Fields()
		if len(fields) != len(paths) {
			return nil, nil, pkgerrors.Configf("snippet source %d has %d fields, want %d", i, len(fields), len(paths))
		}
		for j, f := range fields {
			if f.Path != paths[j] {
				return nil, nil, pkgerrors.Configf("snippet source %d field %d is %q, want %q", i, j, f.Path, paths[j])
			}
			texts = append(texts, f.Text)
		}
	}
	return texts, paths, nil
}

// Redistribute writes snippets back onto rows in flattened order. With paths
// each row gets a path→snippet map under SnippetKey and the first string met
// along each dotted path is replaced by its snippet. Without paths each row
// gets its snippet string under SnippetKey and nothing else changes.
func Redistribute(rows []query.Row, paths []string, snippets []string) error {
	per := 1
	if len(paths) > 0 {
		per = len(paths)
	}
	if len(snippets) != len(rows)*per {
		return pkgerrors.Protocolf("got %d snippets for %d rows of %d fields", len(snippets), len(rows), per)
	}
	for i, row := range rows {
		if len(paths) == 0 {
			row[query.SnippetKey] = snippets[i]
			continue
		}
		byPath := make(map[string]string, len(paths))
		for j, path := range paths {
			s := snippets[i*per+j]
			byPath[path] = s
			replaceFirstString(row, path, s)
		}
		row[query.SnippetKey] = byPath
	}
	return nil
}

// replaceFirstString walks path through nested maps and overwrites the first
// string value it meets.
func replaceFirstString(row query.Row, path, value string) {
	current := map[string]any(row)
	for _, seg := range strings.Split(path, ".") {
		v, ok := current[seg]
		if !ok {
			return
		}
		switch next := v.(type) {
		case string:
			current[seg] = value
			return
		case query.Row:
			current = next
		case map[string]any:
			current = next
		default:
			return
		}
	}
}

// Fill runs the snippet pipeline for q over rows. It does nothing when q has
// no snippet source or there are no rows.
func Fill(ctx context.Context, rows []query.Row, q *query.Query, gen Generator) error {
	if q.SnippetSource == nil || len(rows) == 0 {
		return nil
	}
	match := q.Match.Keywords()
	if match == "" {
		return pkgerrors.Configf("snippets need a match query")
	}
	if gen == nil {
		return pkgerrors.Configf("snippets requested without a generator")
	}

	sources, err := q.SnippetSource(ctx, rows)
	if err != nil {
		return fmt.Errorf("load snippet sources: %w", err)
	}
	if len(sources) != len(rows) {
		return pkgerrors.Configf("snippet source returned %d entries for %d hits", len(sources), len(rows))
	}
	texts, paths, err := Flatten(sources)
	if err != nil {
		return err
	}
	snippets, err := gen.Snippets(ctx, q.SnippetSourceIndex(), texts, match, q.SnippetOptions)
	if err != nil {
		return err
	}
	return Redistribute(rows, paths, snippets)
}
