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

	"github.com/Velocidex/ordereddict"
)

// Row is one table row. Values are aligned with the row's schema; a nil
// value is a missing value.
type Row struct {
	Key    string
	values []interface{}
	schema *Schema
}

// NewRow creates a row. The number of values must match the schema.
func NewRow(schema *Schema, key string, values ...interface{}) (*Row, error) {
	if len(values) != schema.Len() {
		return nil, fmt.Errorf("row %q has %d values, schema has %d columns",
			key, len(values), schema.Len())
	}
	return &Row{Key: key, values: values, schema: schema}, nil
}

// MustRow is like NewRow but panics on error
func MustRow(schema *Schema, key string, values ...interface{}) *Row {
	row, err := NewRow(schema, key, values...)
	if err != nil {
		panic(err)
	}
	return row
}

// Schema returns the columns materialized in this row
func (r *Row) Schema() *Schema {
	return r.schema
}

// Len returns the number of materialized cells
func (r *Row) Len() int {
	return len(r.values)
}

// Value returns the cell at position i of the row's schema
func (r *Row) Value(i int) interface{} {
	return r.values[i]
}

// Values returns a copy of the cells
func (r *Row) Values() []interface{} {
	out := make([]interface{}, len(r.values))
	copy(out, r.values)
	return out
}

// Get returns the named cell. The row key is addressable as RowKeyColumn.
// Columns that were projected away return ErrColumnNotIncluded.
func (r *Row) Get(name string) (interface{}, error) {
	if name == RowKeyColumn {
		return r.Key, nil
	}
	i := r.schema.IndexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotIncluded, name)
	}
	return r.values[i], nil
}

// IsMissing reports whether the named cell is present in the schema but has no value
func (r *Row) IsMissing(name string) bool {
	v, err := r.Get(name)
	return err == nil && v == nil
}

// Project returns a copy of the row restricted to the given schema, which
// must be a projection of the row's schema.
func (r *Row) Project(schema *Schema) *Row {
	if schema == r.schema {
		return r
	}
	values := make([]interface{}, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		if j := r.schema.IndexOf(schema.Column(i).Name); j >= 0 {
			values[i] = r.values[j]
		}
	}
	return &Row{Key: r.Key, values: values, schema: schema}
}

// ToMap returns the row as a column name to value map
func (r *Row) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, v := range r.values {
		m[r.schema.Column(i).Name] = v
	}
	return m
}

// ToDict returns the row as an ordered dict, the key first
func (r *Row) ToDict() *ordereddict.Dict {
	dict := ordereddict.NewDict().Set(RowKeyColumn, r.Key)
	for i, v := range r.values {
		dict.Set(r.schema.Column(i).Name, v)
	}
	return dict
}

func (r *Row) String() string {
	return fmt.Sprintf("%s%v", r.Key, r.values)
}
