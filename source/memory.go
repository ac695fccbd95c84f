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

package source

import (
	"context"
	"fmt"
	"io"

	"github.com/rulego/rowcache/types"
)

// RowKey returns the default key of the row at position i
func RowKey(i int64) string {
	return fmt.Sprintf("Row%d", i)
}

// MemorySource is a table held in a slice. Its size is known.
type MemorySource struct {
	schema *types.Schema
	rows   []*types.Row
}

// NewMemorySource wraps rows that all use schema. The slice is not copied
// and must not be modified afterwards.
func NewMemorySource(schema *types.Schema, rows []*types.Row) *MemorySource {
	return &MemorySource{schema: schema, rows: rows}
}

// NewMemorySourceFromValues builds rows keyed Row0, Row1, ...
func NewMemorySourceFromValues(schema *types.Schema, values [][]interface{}) (*MemorySource, error) {
	rows := make([]*types.Row, len(values))
	for i, v := range values {
		row, err := types.NewRow(schema, RowKey(int64(i)), v...)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return NewMemorySource(schema, rows), nil
}

func (s *MemorySource) Schema() *types.Schema {
	return s.schema
}

func (s *MemorySource) KnownSize() (int64, bool) {
	return int64(len(s.rows)), true
}

// Rows returns the underlying rows
func (s *MemorySource) Rows() []*types.Row {
	return s.rows
}

func (s *MemorySource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	projected, err := s.schema.Project(included)
	if err != nil {
		return nil, err
	}
	return &memoryIterator{rows: s.rows, schema: projected}, nil
}

type memoryIterator struct {
	rows   []*types.Row
	schema *types.Schema
	pos    int
	closed bool
}

func (it *memoryIterator) Next() (*types.Row, error) {
	if it.closed {
		return nil, types.ErrClosed
	}
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row.Project(it.schema), nil
}

func (it *memoryIterator) Close() error {
	it.closed = true
	return nil
}

// UnknownSize hides the known size of a source so that the row count has to
// be discovered by iteration.
func UnknownSize(src types.RowSource) types.RowSource {
	return &unknownSize{src}
}

type unknownSize struct {
	types.RowSource
}

func (*unknownSize) KnownSize() (int64, bool) {
	return 0, false
}

// MemoryMaterializer collects derived tables in memory
type MemoryMaterializer struct{}

func (MemoryMaterializer) NewSink(schema *types.Schema, sizeHint int64) (types.RowSink, error) {
	capacity := 0
	if sizeHint > 0 && sizeHint < 1<<20 {
		capacity = int(sizeHint)
	}
	return &memorySink{schema: schema, rows: make([]*types.Row, 0, capacity)}, nil
}

type memorySink struct {
	schema *types.Schema
	rows   []*types.Row
	done   bool
}

func (s *memorySink) Write(row *types.Row) error {
	if s.done {
		return types.ErrClosed
	}
	s.rows = append(s.rows, row.Project(s.schema))
	return nil
}

func (s *memorySink) Commit() (types.RowSource, error) {
	if s.done {
		return nil, types.ErrClosed
	}
	s.done = true
	return NewMemorySource(s.schema, s.rows), nil
}

func (s *memorySink) Abort() error {
	s.done = true
	s.rows = nil
	return nil
}
