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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/types"
)

// maxLineSize bounds a single JSON record
const maxLineSize = 16 * 1024 * 1024

// JSONLSource reads a JSON lines file, one object per row.
// The size is unknown unless given with WithJSONLSize.
type JSONLSource struct {
	path      string
	schema    *types.Schema
	size      int64
	knownSize bool
	decodeAs  map[string]types.ColumnType
}

// JSONLOption configures a JSONLSource
type JSONLOption func(*JSONLSource)

// WithJSONLSchema fixes the schema instead of inferring it from the first record
func WithJSONLSchema(schema *types.Schema) JSONLOption {
	return func(s *JSONLSource) {
		s.schema = schema
	}
}

// WithJSONLSize declares the number of records in the file
func WithJSONLSize(n int64) JSONLOption {
	return func(s *JSONLSource) {
		s.size = n
		s.knownSize = true
	}
}

// withJSONLDecodeTypes converts the named untyped columns on read without
// changing the schema
func withJSONLDecodeTypes(decodeAs map[string]types.ColumnType) JSONLOption {
	return func(s *JSONLSource) {
		s.decodeAs = decodeAs
	}
}

// OpenJSONL opens a JSON lines file. Without WithJSONLSchema the columns of
// the first record, in document order, become the schema.
func OpenJSONL(path string, opts ...JSONLOption) (*JSONLSource, error) {
	s := &JSONLSource{path: path}
	for _, opt := range opts {
		opt(s)
	}
	if s.schema != nil {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return s, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := newLineScanner(file)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.schema, err = inferSchema(line)
		if err != nil {
			return nil, fmt.Errorf("infer schema of %s: %w", path, err)
		}
		return s, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// empty file
	s.schema, _ = types.NewSchema()
	return s, nil
}

// Path returns the file backing the source
func (s *JSONLSource) Path() string {
	return s.path
}

func (s *JSONLSource) Schema() *types.Schema {
	return s.schema
}

func (s *JSONLSource) KnownSize() (int64, bool) {
	return s.size, s.knownSize
}

func (s *JSONLSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	projected, err := s.schema.Project(included)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return &jsonlIterator{file: file, scanner: newLineScanner(file), schema: projected, decodeAs: s.decodeAs}, nil
}

type jsonlIterator struct {
	file     *os.File
	scanner  *bufio.Scanner
	schema   *types.Schema
	decodeAs map[string]types.ColumnType
	pos      int64
}

func (it *jsonlIterator) Next() (*types.Row, error) {
	if it.file == nil {
		return nil, types.ErrClosed
	}
	for it.scanner.Scan() {
		line := bytes.TrimSpace(it.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row, err := decodeRow(line, it.schema, it.pos, it.decodeAs)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", it.pos, err)
		}
		it.pos++
		return row, nil
	}
	if err := it.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (it *jsonlIterator) Close() error {
	if it.file == nil {
		return nil
	}
	err := it.file.Close()
	it.file = nil
	return err
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

// WriteJSONL copies every row of src into a JSON lines file and returns the
// number of rows written. A partially written file is removed on error.
func WriteJSONL(ctx context.Context, src types.RowSource, path string) (int64, error) {
	it, err := src.OpenIterator(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	sink, err := newJSONLSink(path, src.Schema())
	if err != nil {
		return 0, err
	}
	for {
		if err := types.CheckCancelled(ctx); err != nil {
			_ = sink.Abort()
			return sink.count, err
		}
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = sink.Abort()
			return sink.count, err
		}
		if err := sink.Write(row); err != nil {
			_ = sink.Abort()
			return sink.count, err
		}
	}
	if _, err := sink.Commit(); err != nil {
		return 0, err
	}
	return sink.count, nil
}

// JSONLMaterializer writes derived tables as JSON lines files under Dir.
// Files are named with a random UUID. The caller owns Dir and the files in
// it: nothing is removed when the derived table is closed, so remove Dir
// once its tables are no longer read.
//
// Cells of untyped columns come back with the Go type they were written
// with when every value of the column had the same type.
type JSONLMaterializer struct {
	Dir string
}

func (m JSONLMaterializer) NewSink(schema *types.Schema, sizeHint int64) (types.RowSink, error) {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create spill directory: %w", err)
	}
	path := filepath.Join(m.Dir, "derived-"+uuid.New().String()+".jsonl")
	return newJSONLSink(path, schema)
}

// jsonlSink buffers writes to a JSON lines file. It records the value type
// of each untyped column so the committed source decodes the same types.
type jsonlSink struct {
	path   string
	schema *types.Schema
	file   *os.File
	writer *bufio.Writer
	count  int64
	seen   map[string]types.ColumnType
	mixed  map[string]bool
}

func newJSONLSink(path string, schema *types.Schema) (*jsonlSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &jsonlSink{
		path:   path,
		schema: schema,
		file:   file,
		writer: bufio.NewWriter(file),
		seen:   map[string]types.ColumnType{},
		mixed:  map[string]bool{},
	}, nil
}

func (s *jsonlSink) Write(row *types.Row) error {
	if s.file == nil {
		return types.ErrClosed
	}
	row = row.Project(s.schema)
	data, err := encodeRow(row)
	if err != nil {
		return err
	}
	s.observe(row)
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *jsonlSink) Commit() (types.RowSource, error) {
	if s.file == nil {
		return nil, types.ErrClosed
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if err := errors.Join(flushErr, closeErr); err != nil {
		_ = os.Remove(s.path)
		return nil, err
	}
	logger.Debug("wrote %d rows to %s", s.count, s.path)
	return OpenJSONL(s.path, WithJSONLSchema(s.schema), WithJSONLSize(s.count),
		withJSONLDecodeTypes(s.decodeTypes()))
}

func (s *jsonlSink) observe(row *types.Row) {
	for i := 0; i < s.schema.Len(); i++ {
		col := s.schema.Column(i)
		v := row.Value(i)
		if col.Type != types.TypeAny || v == nil || s.mixed[col.Name] {
			continue
		}
		t, ok := valueType(v)
		if prev, seen := s.seen[col.Name]; !ok || (seen && prev != t) {
			s.mixed[col.Name] = true
			delete(s.seen, col.Name)
			continue
		}
		s.seen[col.Name] = t
	}
}

// decodeTypes lists the untyped columns whose values all had one type
func (s *jsonlSink) decodeTypes() map[string]types.ColumnType {
	if len(s.seen) == 0 {
		return nil
	}
	return s.seen
}

func (s *jsonlSink) Abort() error {
	if s.file == nil {
		return nil
	}
	_ = s.file.Close()
	s.file = nil
	return os.Remove(s.path)
}
