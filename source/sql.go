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
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/rulego/rowcache/types"
)

// SQLSource exposes the result of a SELECT statement as a table. The
// statement is wrapped in a sub query so that projections only fetch the
// included columns. The database must not change while the source is used.
type SQLSource struct {
	db        *sql.DB
	query     string
	keyColumn string
	count     bool
	schema    *types.Schema
	size      int64
	knownSize bool
}

// SQLOption configures a SQLSource
type SQLOption func(*SQLSource)

// WithSQLKeyColumn uses the named result column as row key; it is removed from the schema
func WithSQLKeyColumn(name string) SQLOption {
	return func(s *SQLSource) {
		s.keyColumn = name
	}
}

// WithSQLCount runs a COUNT(*) when the source is created so the size is known
func WithSQLCount() SQLOption {
	return func(s *SQLSource) {
		s.count = true
	}
}

// NewSQLSource describes the result columns of query
func NewSQLSource(ctx context.Context, db *sql.DB, query string, opts ...SQLOption) (*SQLSource, error) {
	s := &SQLSource{db: db, query: strings.TrimRight(strings.TrimSpace(query), ";")}
	for _, opt := range opts {
		opt(s)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM ("+s.query+") AS t LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("describe query: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	rows.Close()
	if err != nil {
		return nil, err
	}

	columns := make([]types.Column, 0, len(columnTypes))
	foundKey := s.keyColumn == ""
	for _, ct := range columnTypes {
		if ct.Name() == s.keyColumn && s.keyColumn != "" {
			foundKey = true
			continue
		}
		columns = append(columns, types.Column{Name: ct.Name(), Type: sqlColumnType(ct)})
	}
	if !foundKey {
		return nil, fmt.Errorf("%w: key column %s", types.ErrUnknownColumn, s.keyColumn)
	}
	if s.schema, err = types.NewSchema(columns...); err != nil {
		return nil, err
	}

	if s.count {
		row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+s.query+") AS t")
		if err := row.Scan(&s.size); err != nil {
			return nil, fmt.Errorf("count rows: %w", err)
		}
		s.knownSize = true
	}
	return s, nil
}

func sqlColumnType(ct *sql.ColumnType) types.ColumnType {
	switch strings.ToUpper(ct.DatabaseTypeName()) {
	case "INTEGER", "INT", "BIGINT", "SMALLINT":
		return types.TypeInt
	case "REAL", "FLOAT", "DOUBLE", "NUMERIC", "DECIMAL":
		return types.TypeFloat
	case "TEXT", "VARCHAR", "CHAR":
		return types.TypeString
	case "BOOLEAN", "BOOL":
		return types.TypeBool
	case "DATETIME", "TIMESTAMP", "DATE":
		return types.TypeTime
	default:
		return types.TypeAny
	}
}

func (s *SQLSource) Schema() *types.Schema {
	return s.schema
}

func (s *SQLSource) KnownSize() (int64, bool) {
	return s.size, s.knownSize
}

func (s *SQLSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	projected, err := s.schema.Project(included)
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, projected.Len()+1)
	if s.keyColumn != "" {
		selected = append(selected, quoteIdent(s.keyColumn))
	}
	for _, name := range projected.Names() {
		selected = append(selected, quoteIdent(name))
	}
	list := strings.Join(selected, ", ")
	if list == "" {
		// nothing to fetch but the rows still have to be counted
		list = "1"
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+list+" FROM ("+s.query+") AS t")
	if err != nil {
		return nil, err
	}
	return &sqlIterator{rows: rows, schema: projected, hasKey: s.keyColumn != ""}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type sqlIterator struct {
	rows   *sql.Rows
	schema *types.Schema
	hasKey bool
	pos    int64
}

func (it *sqlIterator) Next() (*types.Row, error) {
	if it.rows == nil {
		return nil, types.ErrClosed
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	width := it.schema.Len()
	if it.hasKey {
		width++
	}
	if width == 0 {
		width = 1
	}
	cells := make([]interface{}, width)
	dest := make([]interface{}, width)
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := it.rows.Scan(dest...); err != nil {
		return nil, err
	}

	key := RowKey(it.pos)
	values := cells
	if it.hasKey {
		key = fmt.Sprint(normalizeSQL(cells[0]))
		values = cells[1:]
	}
	values = values[:it.schema.Len()]
	for i := range values {
		values[i] = normalizeSQL(values[i])
	}
	it.pos++
	return types.NewRow(it.schema, key, values...)
}

func (it *sqlIterator) Close() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}

// normalizeSQL turns driver byte slices into strings
func normalizeSQL(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
