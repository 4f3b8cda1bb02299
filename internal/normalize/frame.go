// Package normalize turns a scraped city table into tidy city-month rows.
package normalize

import "github.com/go-scripts/climate/internal/types"

// Column is a named vector of cells.
type Column struct {
	Name   string
	Values []types.Cell
}

// Frame is a small column store with a fixed row count. Column order is
// insertion order.
type Frame struct {
	rows    int
	columns []*Column
}

// NewFrame returns an empty frame with n rows.
func NewFrame(n int) *Frame {
	return &Frame{rows: n}
}

// Rows returns the row count.
func (f *Frame) Rows() int {
	return f.rows
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	return f.column(name) != nil
}

// Values returns the cells of the named column, or nil.
func (f *Frame) Values(name string) []types.Cell {
	if c := f.column(name); c != nil {
		return c.Values
	}
	return nil
}

// Set replaces or appends a column. values is padded with nulls or cut to
// the row count.
func (f *Frame) Set(name string, values []types.Cell) {
	fitted := make([]types.Cell, f.rows)
	copy(fitted, values)
	if c := f.column(name); c != nil {
		c.Values = fitted
		return
	}
	f.columns = append(f.columns, &Column{Name: name, Values: fitted})
}

// Fill sets every row of the named column to the same value.
func (f *Frame) Fill(name string, value types.Cell) {
	values := make([]types.Cell, f.rows)
	for i := range values {
		values[i] = value
	}
	f.Set(name, values)
}

// Drop removes the named column if present.
func (f *Frame) Drop(name string) {
	for i, c := range f.columns {
		if c.Name == name {
			f.columns = append(f.columns[:i], f.columns[i+1:]...)
			return
		}
	}
}

func (f *Frame) column(name string) *Column {
	for _, c := range f.columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func value(s string) types.Cell {
	return types.Cell{String: s, Valid: true}
}
