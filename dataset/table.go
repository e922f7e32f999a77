// Copyright 2025 litrev Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dataset implements flat, column-named record sets exchanged
// between the relational layer and model training.
package dataset

import (
	"github.com/juju/errors"
)

// Table is a flat record set with named columns. All values are strings;
// typed access is left to the consumer.
type Table struct {
	Columns []string
	Rows    [][]string
}

func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return errors.Errorf("expect %d fields, got %d", len(t.Columns), len(row))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) columnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Get returns the value at a row and named column. The second return is
// false when the column does not exist.
func (t *Table) Get(row int, column string) (string, bool) {
	i := t.columnIndex(column)
	if i < 0 {
		return "", false
	}
	return t.Rows[row][i], true
}

// InnerJoin matches rows of two tables by a shared key column. Unmatched
// rows on either side are dropped. Rows of the receiver drive the output
// order. Right-hand columns other than the key are appended; on a name
// collision the right-hand column is suffixed with `_right`.
func (t *Table) InnerJoin(right *Table, on string) (*Table, error) {
	leftKey := t.columnIndex(on)
	if leftKey < 0 {
		return nil, errors.Errorf("column %s not found in left table", on)
	}
	rightKey := right.columnIndex(on)
	if rightKey < 0 {
		return nil, errors.Errorf("column %s not found in right table", on)
	}
	// output schema
	columns := make([]string, 0, len(t.Columns)+len(right.Columns)-1)
	columns = append(columns, t.Columns...)
	for i, c := range right.Columns {
		if i == rightKey {
			continue
		}
		if t.columnIndex(c) >= 0 {
			c += "_right"
		}
		columns = append(columns, c)
	}
	// index the right table by key
	index := make(map[string][]string, len(right.Rows))
	for _, row := range right.Rows {
		index[row[rightKey]] = row
	}
	// match left rows
	joined := NewTable(columns...)
	for _, row := range t.Rows {
		match, exist := index[row[leftKey]]
		if !exist {
			continue
		}
		out := make([]string, 0, len(columns))
		out = append(out, row...)
		for i, v := range match {
			if i == rightKey {
				continue
			}
			out = append(out, v)
		}
		if err := joined.Append(out); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return joined, nil
}
