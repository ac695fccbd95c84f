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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rulego/rowcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpillDir(t *testing.T) {
	dir, remove, err := newSpillDir("")
	require.NoError(t, err)
	assert.Empty(t, dir)
	remove()

	base := filepath.Join(t.TempDir(), "spill")
	dir, remove, err = newSpillDir(base)
	require.NoError(t, err)
	assert.Equal(t, base, filepath.Dir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "derived.jsonl"), []byte("{}\n"), 0o600))

	remove()
	assert.NoDirExists(t, dir)
	assert.DirExists(t, base)
}

func TestCSVTypeFlag(t *testing.T) {
	defer func() { csvTypes = nil }()

	csvTypes = []string{"price:float", " qty : INT "}
	opts, err := csvOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	for _, bad := range []string{"price", ":int", "price:decimal"} {
		csvTypes = []string{bad}
		_, err := csvOptions()
		assert.Error(t, err, bad)
	}
}

func TestSessionRemovesSpillFiles(t *testing.T) {
	base := t.TempDir()
	conf := types.DefaultCacheConfig()
	conf.Transform.SpillDir = base
	cfg = &conf
	csvTypes = []string{"price:float"}
	sortSpec = "price:desc"
	defer func() {
		cfg, csvTypes, sortSpec = nil, nil, ""
	}()

	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,price\na,9\nb,10.5\nc,2\n"), 0o600))

	s, err := openSession(context.Background(), []string{path})
	require.NoError(t, err)
	rows, err := s.window.GetRows(context.Background(), 0, 3)
	require.NoError(t, err)
	var names []interface{}
	for _, row := range rows {
		v, err := row.Get("name")
		require.NoError(t, err)
		names = append(names, v)
	}
	// numeric order, not text order
	assert.Equal(t, []interface{}{"b", "a", "c"}, names)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	s.Close()
	entries, err = os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
