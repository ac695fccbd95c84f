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

package transform

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/sorter"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var byB = types.SortSpec{Columns: []types.SortColumn{{Name: "B"}}, MissingLast: true}

func newOrders(t *testing.T, opts ...rowcache.Option) *rowcache.CacheWindow {
	t.Helper()
	src, err := source.NewMemorySourceFromValues(types.MustSchema("A", "B", "C"), [][]interface{}{
		{"a0", int64(30), "x"},
		{"a1", nil, "y"},
		{"a2", int64(10), "x"},
		{"a3", int64(20), nil},
		{"a4", nil, "z"},
		{"a5", int64(10), "y"},
	})
	require.NoError(t, err)
	opts = append([]rowcache.Option{rowcache.WithDiscardLog()}, opts...)
	w, err := rowcache.New(source.UnknownSize(src), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func column(t *testing.T, w *rowcache.CacheWindow, name string) []interface{} {
	t.Helper()
	n, err := w.GetRowCount()
	if err != nil {
		// unknown counts are discovered by reading past the end
		n = int64(w.CacheSize() - w.LookAhead())
	}
	if n == 0 {
		return nil
	}
	rows, err := w.GetRows(context.Background(), 0, n)
	require.NoError(t, err)
	out := make([]interface{}, len(rows))
	for i, row := range rows {
		v, err := row.Get(name)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestSortMissingLast(t *testing.T) {
	orig := newOrders(t)
	exec, err := NewBuilder(orig).Sort(byB).Build()
	require.NoError(t, err)

	sorted, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer sorted.Close()

	assert.NotSame(t, orig, sorted)
	assert.Equal(t, []interface{}{int64(10), int64(10), int64(20), int64(30), nil, nil}, column(t, sorted, "B"))
	assert.Equal(t, []interface{}{"a2", "a5", "a3", "a0", "a1", "a4"}, column(t, sorted, "A"))
	assert.Equal(t, []types.Transformation{byB}, sorted.TransformationLog())

	// sorted tables know their size
	n, err := sorted.GetRowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	// the original is untouched
	assert.Empty(t, orig.TransformationLog())
	assert.Equal(t, []interface{}{"a0", "a1", "a2", "a3", "a4", "a5"}, column(t, orig, "A"))
}

func TestNaturalSortIsPassthrough(t *testing.T) {
	orig := newOrders(t)
	exec, err := NewBuilder(orig).Sort(types.SortSpec{}).Build()
	require.NoError(t, err)

	got, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, orig, got)

	exec, err = NewBuilder(orig).Build()
	require.NoError(t, err)
	got, err = exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, orig, got)
}

func TestNaturalSortSkippedInLog(t *testing.T) {
	orig := newOrders(t)
	filter := types.ColumnFilterSpec{Columns: []string{"A"}}
	exec, err := NewBuilder(orig).Sort(types.SortSpec{}).Filter(filter).Build()
	require.NoError(t, err)

	got, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, []types.Transformation{filter}, got.TransformationLog())
}

func TestLookAheadPropagation(t *testing.T) {
	orig := newOrders(t, rowcache.WithCacheSize(300), rowcache.WithLookAhead(25))
	exec, err := NewBuilder(orig).Sort(byB).Build()
	require.NoError(t, err)

	sorted, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer sorted.Close()
	assert.Equal(t, 300, sorted.CacheSize())
	assert.Equal(t, 25, sorted.LookAhead())
}

func TestColumnFilter(t *testing.T) {
	orig := newOrders(t, rowcache.WithIncludedColumns("A", "B"))

	exec, err := NewBuilder(orig).Filter(types.ColumnFilterSpec{Columns: []string{"C", "B"}}).Build()
	require.NoError(t, err)
	got, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer got.Close()

	assert.Equal(t, []string{"B"}, got.IncludedColumns())
	rows, err := got.GetRows(context.Background(), 0, 3)
	require.NoError(t, err)
	_, err = rows[0].Get("A")
	assert.ErrorIs(t, err, types.ErrColumnNotIncluded)
	// same source, same row count
	assert.Equal(t, orig.Source(), got.Source())

	exec, err = NewBuilder(orig).Filter(types.ColumnFilterSpec{Columns: []string{"nope"}}).Build()
	require.NoError(t, err)
	_, err = exec.Apply(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrUnknownColumn)
}

func TestSortOnExcludedColumn(t *testing.T) {
	orig := newOrders(t, rowcache.WithIncludedColumns("A"))
	exec, err := NewBuilder(orig).Sort(byB).Build()
	require.NoError(t, err)
	_, err = exec.Apply(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrColumnNotIncluded)
}

func TestWhereThenSort(t *testing.T) {
	orig := newOrders(t)
	where := types.RowFilterSpec{Expression: "is_not_null(B) && B >= 20 || C == 'z'"}
	exec, err := NewBuilder(orig).
		Where(where).
		Sort(types.SortSpec{Columns: []types.SortColumn{{Name: "B", Descending: true}}}).
		Build()
	require.NoError(t, err)

	got, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer got.Close()

	assert.Equal(t, []interface{}{"a0", "a3", "a4"}, column(t, got, "A"))
	n, err := got.GetRowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, got.TransformationLog(), 2)

	exec, err = NewBuilder(orig).Where(types.RowFilterSpec{Expression: "B >"}).Build()
	require.NoError(t, err)
	_, err = exec.Apply(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuilderFrozen(t *testing.T) {
	b := NewBuilder(newOrders(t)).Sort(byB)
	_, err := b.Build()
	require.NoError(t, err)

	b.Filter(types.ColumnFilterSpec{Columns: []string{"A"}})
	assert.ErrorIs(t, b.Err(), types.ErrBuilderFrozen)
	assert.Len(t, b.Steps(), 1)

	_, err = b.Build()
	assert.ErrorIs(t, err, types.ErrBuilderFrozen)
}

func TestCancelledApply(t *testing.T) {
	orig := newOrders(t)
	exec, err := NewBuilder(orig).Sort(byB).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := exec.Apply(ctx, nil)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.Nil(t, got)

	rows, err := orig.GetRows(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// countingSorter counts delegated sorts
type countingSorter struct {
	calls int32
	inner types.Sorter
}

func (s *countingSorter) Sort(ctx context.Context, req types.SortRequest) (types.RowSource, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.inner.Sort(ctx, req)
}

func TestResultCache(t *testing.T) {
	orig := newOrders(t)
	results := NewResultCache(4, time.Minute)
	defer results.Close()
	counting := &countingSorter{inner: sorter.NewBTreeSorter()}

	for i := 0; i < 2; i++ {
		exec, err := NewBuilder(orig, WithSorter(counting), WithResultCache(results)).Sort(byB).Build()
		require.NoError(t, err)
		got, err := exec.Apply(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a2", "a5", "a3", "a0", "a1", "a4"}, column(t, got, "A"))
		require.NoError(t, got.Close())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&counting.calls))
	assert.Equal(t, 1, results.Len())

	require.NoError(t, results.Purge())
	assert.Equal(t, 0, results.Len())
	assert.Nil(t, NewResultCacheFromConfig(types.TransformConfig{}))
}

func TestResultCacheFreshSources(t *testing.T) {
	results := NewResultCache(4, time.Minute)
	defer results.Close()
	schema := types.MustSchema("A", "B")

	for i := 0; i < 300; i++ {
		src, err := source.NewMemorySourceFromValues(schema, [][]interface{}{
			{fmt.Sprintf("x%d", i), int64(2*i + 1)},
			{fmt.Sprintf("y%d", i), int64(2 * i)},
		})
		require.NoError(t, err)
		w, err := rowcache.New(src, rowcache.WithDiscardLog())
		require.NoError(t, err)

		exec, err := NewBuilder(w, WithResultCache(results)).Sort(byB).Build()
		require.NoError(t, err)
		got, err := exec.Apply(context.Background(), nil)
		require.NoError(t, err)
		require.Equal(t, []interface{}{int64(2 * i), int64(2*i + 1)}, column(t, got, "B"), "table %d", i)

		require.NoError(t, got.Close())
		require.NoError(t, w.Close())
		// 让旧的数据源被回收，地址可能被复用
		runtime.GC()
	}
}

func TestResultCacheChecksInput(t *testing.T) {
	results := NewResultCache(4, time.Minute)
	defer results.Close()
	a, err := source.NewMemorySourceFromValues(types.MustSchema("A"), [][]interface{}{{1}})
	require.NoError(t, err)
	b, err := source.NewMemorySourceFromValues(types.MustSchema("A"), [][]interface{}{{2}})
	require.NoError(t, err)

	results.put("k", cachedResult{input: a, src: a, rowCount: 1})
	_, ok := results.get("k", b)
	assert.False(t, ok)
	res, ok := results.get("k", a)
	require.True(t, ok)
	assert.Same(t, a, res.src)
}

func TestProgress(t *testing.T) {
	orig := newOrders(t)
	exec, err := NewBuilder(orig, WithLogger(logger.NewDiscardLogger())).
		Sort(byB).
		Filter(types.ColumnFilterSpec{Columns: []string{"A"}}).
		Build()
	require.NoError(t, err)

	var fractions []float64
	_, err = exec.Apply(context.Background(), func(fraction float64, _ string) {
		fractions = append(fractions, fraction)
	})
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestSpillDir(t *testing.T) {
	dir := t.TempDir()
	orig := newOrders(t)
	exec, err := NewBuilder(orig, WithConfig(types.TransformConfig{SpillDir: dir})).Sort(byB).Build()
	require.NoError(t, err)

	got, err := exec.Apply(context.Background(), nil)
	require.NoError(t, err)
	defer got.Close()

	_, ok := got.Source().(*source.JSONLSource)
	assert.True(t, ok)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"a2", "a5", "a3", "a0", "a1", "a4"}, column(t, got, "A"))
}
