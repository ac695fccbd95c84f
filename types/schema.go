/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strings"
)

// RowKeyColumn is the pseudo column that addresses the row key in sort specs.
const RowKeyColumn = "$key"

// ColumnType is a hint describing the values stored in a column
type ColumnType string

const (
	TypeAny    ColumnType = ""
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
	TypeTime   ColumnType = "time"
)

// Column describes one column of a table
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Schema is an ordered list of columns with a name index.
// A Schema is immutable once created.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema creates a schema from the given columns.
// Duplicate or empty column names are rejected.
func NewSchema(columns ...Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if col.Name == RowKeyColumn {
			return nil, fmt.Errorf("column name %q is reserved", RowKeyColumn)
		}
		if _, dup := s.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		s.columns[i] = col
		s.index[col.Name] = i
	}
	return s, nil
}

// MustSchema is like NewSchema for untyped column names but panics on error.
func MustSchema(names ...string) *Schema {
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name}
	}
	s, err := NewSchema(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

// Column returns the column at position i
func (s *Schema) Column(i int) Column {
	return s.columns[i]
}

// Columns returns a copy of the column list
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in order
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

// IndexOf returns the position of the named column, or -1.
func (s *Schema) IndexOf(name string) int {
	if s == nil {
		return -1
	}
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether the schema contains the named column
func (s *Schema) Has(name string) bool {
	return s.IndexOf(name) >= 0
}

// Project returns the sub schema made of the included columns, keeping the
// original column order. A nil included list returns the schema itself.
func (s *Schema) Project(included []string) (*Schema, error) {
	if included == nil {
		return s, nil
	}
	want := make(map[string]bool, len(included))
	for _, name := range included {
		if !s.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		want[name] = true
	}
	columns := make([]Column, 0, len(want))
	for _, col := range s.columns {
		if want[col.Name] {
			columns = append(columns, col)
		}
	}
	return NewSchema(columns...)
}

// String renders the schema as a comma separated column list
func (s *Schema) String() string {
	return strings.Join(s.Names(), ",")
}
