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
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rulego/rowcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrdersDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id TEXT, name TEXT, qty INTEGER);
INSERT INTO orders VALUES ('o1', 'apple', 3), ('o2', 'pear', NULL), ('o3', 'fig', 9);`)
	require.NoError(t, err)
	return db
}

func TestSQLSource(t *testing.T) {
	db := newOrdersDB(t)
	ctx := context.Background()

	src, err := NewSQLSource(ctx, db, "SELECT * FROM orders ORDER BY id;", WithSQLKeyColumn("id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "qty"}, src.Schema().Names())
	_, ok := src.KnownSize()
	assert.False(t, ok)

	rows := readAll(t, src, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, "o1", rows[0].Key)
	assert.Equal(t, "apple", rows[0].Value(0))
	assert.Equal(t, int64(3), rows[0].Value(1))
	assert.True(t, rows[1].IsMissing("qty"))

	qty := readAll(t, src, []string{"qty"})
	assert.Equal(t, []interface{}{int64(9)}, qty[2].Values())
	assert.Equal(t, "o3", qty[2].Key)

	// no columns still yields one row per record
	assert.Len(t, readAll(t, src, []string{}), 3)
}

func TestSQLSourceCount(t *testing.T) {
	db := newOrdersDB(t)
	src, err := NewSQLSource(context.Background(), db, "SELECT name FROM orders WHERE qty IS NOT NULL", WithSQLCount())
	require.NoError(t, err)
	n, ok := src.KnownSize()
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)

	rows := readAll(t, src, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "Row1", rows[1].Key)
}

func TestSQLSourceErrors(t *testing.T) {
	db := newOrdersDB(t)
	ctx := context.Background()

	_, err := NewSQLSource(ctx, db, "SELECT * FROM missing")
	assert.Error(t, err)

	_, err = NewSQLSource(ctx, db, "SELECT * FROM orders", WithSQLKeyColumn("nope"))
	assert.ErrorIs(t, err, types.ErrUnknownColumn)
}
