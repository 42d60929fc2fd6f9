package compiler

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/internal/searcher/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

var matchEscaper = strings.NewReplacer(
	`\`, `\\`,
	`/`, `\/`,
	`"`, `\"`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`!`, `\!`,
	`@`, `\@`,
	`~`, `\~`,
	`&`, `\&`,
	`^`, `\^`,
	`$`, `\$`,
	`=`, `\=`,
	`>`, `\>`,
	`<`, `\<`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// EscapeMatch escapes full-text operators so text is searched literally.
func EscapeMatch(text string) string {
	return matchEscaper.Replace(text)
}

// CompileSnippets builds a CALL SNIPPETS statement that highlights match in
// every source, using index for tokenization. The result set has one row per
// source, in source order.
func CompileSnippets(index string, sources []string, match string, opts query.SnippetOptions) (Statement, error) {
	if match == "" {
		return Statement{}, pkgerrors.Configf("snippets need a match query")
	}
	if index == "" {
		return Statement{}, pkgerrors.Configf("snippets need an index")
	}
	if len(sources) == 0 {
		return Statement{}, pkgerrors.Configf("snippets need at least one source")
	}

	b := &builder{}
	b.write("CALL SNIPPETS(")
	if len(sources) == 1 {
		b.bind(sources[0])
	} else {
		b.write("(")
		for i, s := range sources {
			if i > 0 {
				b.write(", ")
			}
			b.bind(s)
		}
		b.write(")")
	}
	b.write(", ")
	b.bind(index)
	b.write(", ")
	b.bind(match)
	writeSnippetOptions(b, opts)
	b.write(")")
	return b.statement(KindSnippets), nil
}

func writeSnippetOptions(b *builder, opts query.SnippetOptions) {
	str := func(name, v string) {
		if v != "" {
			b.write(", ")
			b.bind(v)
			b.write(" AS ", name)
		}
	}
	num := func(name string, v int) {
		if v > 0 {
			b.write(", ", strconv.Itoa(v), " AS ", name)
		}
	}
	flag := func(name string, v bool) {
		if v {
			b.write(", 1 AS ", name)
		}
	}
	str("before_match", opts.BeforeMatch)
	str("after_match", opts.AfterMatch)
	str("chunk_separator", opts.ChunkSeparator)
	str("html_strip_mode", opts.HTMLStripMode)
	num("limit", opts.Limit)
	num("around", opts.Around)
	num("limit_words", opts.LimitWords)
	flag("exact_phrase", opts.ExactPhrase)
	flag("query_mode", opts.QueryMode)
	flag("allow_empty", opts.AllowEmpty)
}
