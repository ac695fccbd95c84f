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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rulego/rowcache/types"
	"github.com/spf13/cast"
)

// CSVSource reads a CSV file whose first record is the header.
// Empty cells are missing values. The size is unknown.
type CSVSource struct {
	path      string
	comma     rune
	keyColumn string
	colTypes  map[string]types.ColumnType
	schema    *types.Schema
	header    []string
}

// CSVOption configures a CSVSource
type CSVOption func(*CSVSource)

// WithCSVComma sets the field delimiter
func WithCSVComma(comma rune) CSVOption {
	return func(s *CSVSource) {
		s.comma = comma
	}
}

// WithCSVKeyColumn uses the named column as row key; it is removed from the schema
func WithCSVKeyColumn(name string) CSVOption {
	return func(s *CSVSource) {
		s.keyColumn = name
	}
}

// WithCSVColumnType converts the named column's cells to the given type
func WithCSVColumnType(name string, t types.ColumnType) CSVOption {
	return func(s *CSVSource) {
		s.colTypes[name] = t
	}
}

// OpenCSV reads the header of a CSV file
func OpenCSV(path string, opts ...CSVOption) (*CSVSource, error) {
	s := &CSVSource{path: path, comma: ',', colTypes: map[string]types.ColumnType{}}
	for _, opt := range opts {
		opt(s)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header, err := s.newReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	s.header = header

	columns := make([]types.Column, 0, len(header))
	foundKey := s.keyColumn == ""
	for _, name := range header {
		if name == s.keyColumn && s.keyColumn != "" {
			foundKey = true
			continue
		}
		columns = append(columns, types.Column{Name: name, Type: s.colTypes[name]})
	}
	if !foundKey {
		return nil, fmt.Errorf("%w: key column %s", types.ErrUnknownColumn, s.keyColumn)
	}
	s.schema, err = types.NewSchema(columns...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSource) newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = s.comma
	reader.ReuseRecord = true
	return reader
}

func (s *CSVSource) Schema() *types.Schema {
	return s.schema
}

func (s *CSVSource) KnownSize() (int64, bool) {
	return 0, false
}

func (s *CSVSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	projected, err := s.schema.Project(included)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	reader := s.newReader(file)
	if _, err := reader.Read(); err != nil {
		file.Close()
		return nil, err
	}

	// position of every projected column and of the key in a record
	fieldIdx := make([]int, projected.Len())
	for i := range fieldIdx {
		fieldIdx[i] = indexOf(s.header, projected.Column(i).Name)
	}
	return &csvIterator{
		file:     file,
		reader:   reader,
		schema:   projected,
		fieldIdx: fieldIdx,
		keyIdx:   indexOf(s.header, s.keyColumn),
	}, nil
}

type csvIterator struct {
	file     *os.File
	reader   *csv.Reader
	schema   *types.Schema
	fieldIdx []int
	keyIdx   int
	pos      int64
}

func (it *csvIterator) Next() (*types.Row, error) {
	if it.file == nil {
		return nil, types.ErrClosed
	}
	record, err := it.reader.Read()
	if err != nil {
		// io.EOF passes through untouched
		return nil, err
	}

	key := RowKey(it.pos)
	if it.keyIdx >= 0 && it.keyIdx < len(record) {
		key = record[it.keyIdx]
	}
	values := make([]interface{}, len(it.fieldIdx))
	for i, idx := range it.fieldIdx {
		if idx >= len(record) || record[idx] == "" {
			continue
		}
		values[i], err = convertCell(record[idx], it.schema.Column(i).Type)
		if err != nil {
			return nil, fmt.Errorf("record %d column %s: %w",
				it.pos, it.schema.Column(i).Name, err)
		}
	}
	it.pos++
	return types.NewRow(it.schema, key, values...)
}

func (it *csvIterator) Close() error {
	if it.file == nil {
		return nil
	}
	err := it.file.Close()
	it.file = nil
	return err
}

func convertCell(cell string, t types.ColumnType) (interface{}, error) {
	switch t {
	case types.TypeInt:
		return cast.ToInt64E(cell)
	case types.TypeFloat:
		return cast.ToFloat64E(cell)
	case types.TypeBool:
		return cast.ToBoolE(cell)
	case types.TypeTime:
		v, err := cast.ToTimeE(cell)
		if err != nil {
			return nil, err
		}
		return v.UTC().Truncate(time.Microsecond), nil
	default:
		return cell, nil
	}
}

func indexOf(list []string, name string) int {
	if name == "" {
		return -1
	}
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}
