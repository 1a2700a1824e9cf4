//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of PortalSync.
//
// PortalSync is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PortalSync is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PortalSync. If not, see https://www.gnu.org/licenses/.

package portalsync

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Package portalsync moves tabular data between an in-memory Dataset and a
// remote hosted-table service, supporting create, append, overwrite, upsert,
// update, and insert semantics with chunking for large datasets.
//
// This file contains the Dataset type: an ordered collection of named, typed
// columns with rows addressable by position.

// FieldType identifies the logical type of a Dataset column.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldFloat
	FieldBool
	FieldTime
)

// String returns a human-readable name for the field type.
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column describes a single named, typed column of a Dataset.
type Column struct {
	Name string
	Type FieldType
}

// Dataset is an ordered collection of named, typed columns with rows
// addressable by position. It is owned by the caller; the sync workflow
// never mutates it except to re-order rows by a key prior to chunking and
// to apply the optional UTC timestamp normalization policy.
type Dataset struct {
	cols []Column
	rows [][]interface{}
}

// NewDataset creates an empty Dataset with the given column definitions.
// Column names must be non-empty and unique (case-insensitive).
func NewDataset(cols []Column) (*Dataset, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("dataset requires at least one column")
	}
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return nil, fmt.Errorf("dataset column name must not be empty")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate dataset column %q", c.Name)
		}
		seen[name] = struct{}{}
	}
	return &Dataset{cols: append([]Column(nil), cols...)}, nil
}

// AppendRow adds one row of values in column order.
func (d *Dataset) AppendRow(values ...interface{}) error {
	if len(values) != len(d.cols) {
		return fmt.Errorf("row has %d values, dataset has %d columns", len(values), len(d.cols))
	}
	row := append([]interface{}(nil), values...)
	d.rows = append(d.rows, row)
	return nil
}

// NumRows returns the number of rows in the dataset.
func (d *Dataset) NumRows() int { return len(d.rows) }

// NumColumns returns the number of columns in the dataset.
func (d *Dataset) NumColumns() int { return len(d.cols) }

// Columns returns a copy of the column definitions.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.cols...)
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, matching
// case-insensitively, or -1 when no such column exists.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.cols {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Value returns the value at the given row and column positions.
func (d *Dataset) Value(row, col int) interface{} {
	return d.rows[row][col]
}

// Row returns the row at the given position. The returned slice is shared
// with the dataset and must not be modified.
func (d *Dataset) Row(i int) []interface{} {
	return d.rows[i]
}

// setValue replaces a single cell. Used by the timestamp normalizer.
func (d *Dataset) setValue(row, col int, v interface{}) {
	d.rows[row][col] = v
}

// SortBy stably sorts the rows ascending by the named key columns.
// Returns an error if any key column does not exist.
func (d *Dataset) SortBy(keys ...string) error {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		i := d.ColumnIndex(k)
		if i < 0 {
			return fmt.Errorf("sort key column %q not found", k)
		}
		idx = append(idx, i)
	}
	sort.SliceStable(d.rows, func(a, b int) bool {
		for _, i := range idx {
			if c := compareValues(d.rows[a][i], d.rows[b][i]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return nil
}

// Slice returns a contiguous view of rows [lo, hi). The slice shares row
// storage with the parent dataset.
func (d *Dataset) Slice(lo, hi int) *Dataset {
	return &Dataset{cols: d.cols, rows: d.rows[lo:hi]}
}

// compareValues orders two cell values of the same logical column.
// Nil sorts before any value; mismatched or unordered types compare by
// their string form so the sort remains total.
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return compareInt64(int64(av), int64(bv))
		}
	case int32:
		if bv, ok := b.(int32); ok {
			return compareInt64(int64(av), int64(bv))
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareInt64(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
