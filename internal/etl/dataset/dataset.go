// Package dataset loads raw source files into in-memory record sets.
//
// Sources are csv or json_lines files, optionally gzip-compressed, with
// column renames applied at load time. Records keep untyped values; all type
// coercion happens later in the field mapper.
package dataset

import (
	"strings"
)

// Record is one raw row keyed by column name.
type Record map[string]any

// Set is an ordered collection of records sharing a column list.
type Set struct {
	Alias   string
	Columns []string
	Rows    []Record
}

// NewSet builds an empty set with the given columns.
func NewSet(alias string, columns []string) *Set {
	return &Set{Alias: alias, Columns: columns}
}

// HasColumn reports whether the set declares the named column.
func (s *Set) HasColumn(name string) bool {
	for _, col := range s.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Len reports the number of rows.
func (s *Set) Len() int {
	return len(s.Rows)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func renameColumns(columns []string, renames map[string]string) []string {
	if len(renames) == 0 {
		return columns
	}
	out := make([]string, len(columns))
	for i, col := range columns {
		if renamed, ok := renames[col]; ok && strings.TrimSpace(renamed) != "" {
			out[i] = renamed
		} else {
			out[i] = col
		}
	}
	return out
}
