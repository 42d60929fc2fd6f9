// Package readertest provides an in-memory result set cursor for tests.
package readertest

import (
	"errors"
	"fmt"
)

// Set is one scripted result set. A set with Fail set cannot be advanced
// into; the cursor reports Fail through Err instead.
type Set struct {
	Columns []string
	Rows    [][]any
	Fail    error
}

// Cursor replays scripted result sets the way *sql.Rows does.
type Cursor struct {
	sets   []Set
	cur    int
	row    int
	err    error
	closed bool
}

func NewCursor(sets ...Set) *Cursor {
	c := &Cursor{sets: sets}
	if len(sets) > 0 && sets[0].Fail != nil {
		c.err = sets[0].Fail
		c.cur = len(sets)
	}
	return c
}

func (c *Cursor) Columns() ([]string, error) {
	if c.closed {
		return nil, errors.New("cursor is closed")
	}
	if c.cur >= len(c.sets) {
		return nil, errors.New("no current result set")
	}
	return c.sets[c.cur].Columns, nil
}

func (c *Cursor) Next() bool {
	if c.closed || c.cur >= len(c.sets) {
		return false
	}
	if c.row < len(c.sets[c.cur].Rows) {
		c.row++
		return true
	}
	return false
}

func (c *Cursor) Scan(dest ...any) error {
	if c.row == 0 || c.cur >= len(c.sets) {
		return errors.New("scan called without a row")
	}
	row := c.sets[c.cur].Rows[c.row-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return fmt.Errorf("destination %d has type %T", i, d)
		}
		*p = row[i]
	}
	return nil
}

func (c *Cursor) NextResultSet() bool {
	if c.closed || c.cur+1 >= len(c.sets) {
		c.cur = len(c.sets)
		return false
	}
	c.cur++
	c.row = 0
	if c.sets[c.cur].Fail != nil {
		c.err = c.sets[c.cur].Fail
		c.cur = len(c.sets)
		return false
	}
	return true
}

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Cursor) Closed() bool { return c.closed }
