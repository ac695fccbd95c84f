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

package rowcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/metrics"
	"github.com/rulego/rowcache/rowcount"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource records iterator activity of the wrapped source
type countingSource struct {
	types.RowSource
	mu      sync.Mutex
	opened  int
	closed  int
	nexts   int
	failAt  int64 // Next fails at this position when >= 0
	unknown bool
	onNext  func(pos int64)
}

func (s *countingSource) KnownSize() (int64, bool) {
	if s.unknown {
		return 0, false
	}
	return s.RowSource.KnownSize()
}

func (s *countingSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	it, err := s.RowSource.OpenIterator(ctx, included)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	var pos int64
	return types.RowIteratorFunc{
		NextFunc: func() (*types.Row, error) {
			s.mu.Lock()
			s.nexts++
			s.mu.Unlock()
			if s.onNext != nil {
				s.onNext(pos)
			}
			if s.failAt >= 0 && pos == s.failAt {
				return nil, errors.New("disk on fire")
			}
			pos++
			return it.Next()
		},
		CloseFunc: func() error {
			s.mu.Lock()
			s.closed++
			s.mu.Unlock()
			return it.Close()
		},
	}, nil
}

func (s *countingSource) stats() (opened, closed, nexts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed, s.nexts
}

func newTable(t *testing.T, n int) *source.MemorySource {
	t.Helper()
	schema := types.MustSchema("A", "B", "C")
	values := make([][]interface{}, n)
	for i := range values {
		values[i] = []interface{}{int64(i), fmt.Sprintf("b%d", i), float64(i) / 2}
	}
	src, err := source.NewMemorySourceFromValues(schema, values)
	require.NoError(t, err)
	return src
}

func newCounting(t *testing.T, n int, unknown bool) *countingSource {
	return &countingSource{RowSource: newTable(t, n), failAt: -1, unknown: unknown}
}

func newWindow(t *testing.T, src types.RowSource, opts ...Option) *CacheWindow {
	t.Helper()
	opts = append([]Option{WithDiscardLog()}, opts...)
	w, err := New(src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func requireKeys(t *testing.T, rows []*types.Row, from, to int64) {
	t.Helper()
	require.Len(t, rows, int(to-from+1))
	for i, row := range rows {
		assert.Equal(t, source.RowKey(from+int64(i)), row.Key)
	}
}

func TestNewDefaults(t *testing.T) {
	w := newWindow(t, newTable(t, 10))
	assert.Equal(t, types.DefaultCacheSize, w.CacheSize())
	assert.Equal(t, types.DefaultLookAhead, w.LookAhead())
	assert.Nil(t, w.IncludedColumns())
	assert.Empty(t, w.TransformationLog())
	assert.Equal(t, int64(0), w.IteratorPosition())

	// known size makes the count final from the start
	assert.True(t, w.HasRowCount())
	n, err := w.GetRowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(newTable(t, 1), WithIncludedColumns("A", "Z"))
	assert.ErrorIs(t, err, types.ErrUnknownColumn)
}

func TestScenarioFirstPage(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(500), WithLookAhead(50))

	rows, err := w.GetRows(context.Background(), 0, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 0, 9)

	assert.Equal(t, int64(60), w.IteratorPosition())
	assert.Equal(t, int64(60), w.ObservedRowCount())
	assert.False(t, w.HasRowCount())
	_, err = w.GetRowCount()
	assert.ErrorIs(t, err, types.ErrUnknownCount)
}

func TestScenarioPushToEnd(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(500), WithLookAhead(50))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)

	rows, err := w.GetRows(ctx, 990, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 990, 999)

	assert.True(t, w.HasRowCount())
	n, err := w.GetRowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, int64(1000), w.IteratorPosition())

	// past the end now fails, an overlapping request is truncated
	_, err = w.GetRows(ctx, 1000, 1)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
	rows, err = w.GetRows(ctx, 995, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 995, 999)
}

func TestScenarioBackwardRebuild(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(500), WithLookAhead(50))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 700, 10)
	require.NoError(t, err)
	opened, _, _ := src.stats()
	require.Equal(t, 1, opened)

	rows, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 0, 9)

	opened, closed, _ := src.stats()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, closed, "old iterator released before the rebuild")
	assert.Equal(t, int64(60), w.IteratorPosition())
	// observed count survives the rebuild
	assert.Equal(t, int64(760), w.ObservedRowCount())
	assert.Equal(t, int64(1), w.Stats().GetRebuilds())
}

func TestScenarioSetRowCount(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(500), WithLookAhead(50))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)
	_, _, nexts := src.stats()

	w.SetRowCount(1000, true)
	assert.Equal(t, int64(1000), w.ObservedRowCount())
	assert.True(t, w.HasRowCount())
	assert.Equal(t, int64(60), w.IteratorPosition())

	// cached rows are still served without touching the source
	rows, err := w.GetRows(ctx, 5, 20)
	require.NoError(t, err)
	requireKeys(t, rows, 5, 24)
	_, _, after := src.stats()
	assert.Equal(t, nexts, after)
}

func TestSetRowCountMonotonic(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 100)))
	_, err := w.GetRows(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(60), w.ObservedRowCount())

	w.SetRowCount(30, true)
	assert.Equal(t, int64(60), w.ObservedRowCount())
	assert.False(t, w.HasRowCount())

	w.SetRowCount(80, false)
	assert.Equal(t, int64(80), w.ObservedRowCount())
	assert.False(t, w.HasRowCount())

	w.SetRowCount(100, true)
	assert.True(t, w.HasRowCount())

	// a final count only moves on a strictly larger explicit override
	w.SetRowCount(90, true)
	n, _ := w.GetRowCount()
	assert.Equal(t, int64(100), n)
}

func TestIdempotentReread(t *testing.T) {
	src := newCounting(t, 1000, false)
	w := newWindow(t, src, WithCacheSize(100), WithLookAhead(10))
	ctx := context.Background()

	first, err := w.GetRows(ctx, 20, 30)
	require.NoError(t, err)
	pos := w.IteratorPosition()
	_, _, nexts := src.stats()

	second, err := w.GetRows(ctx, 20, 30)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, pos, w.IteratorPosition())
	_, _, after := src.stats()
	assert.Equal(t, nexts, after)
	assert.Equal(t, int64(1), w.Stats().GetHits())
}

func TestWindowContainment(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 1000)), WithCacheSize(100), WithLookAhead(10))
	ctx := context.Background()

	for _, start := range []int64{0, 50, 300, 310, 120, 900, 5} {
		rows, err := w.GetRows(ctx, start, 40)
		require.NoError(t, err)
		requireKeys(t, rows, start, start+39)

		pos := w.IteratorPosition()
		assert.GreaterOrEqual(t, w.ObservedRowCount(), pos)
		assert.GreaterOrEqual(t, start, pos-int64(w.CacheSize()))
		assert.Less(t, start+39, pos)
	}
}

func TestObservedCountMonotonic(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 500)), WithCacheSize(60), WithLookAhead(5))
	ctx := context.Background()

	var last int64
	for _, start := range []int64{100, 0, 200, 10, 490, 0} {
		_, err := w.GetRows(ctx, start, 20)
		require.NoError(t, err)
		observed := w.ObservedRowCount()
		assert.GreaterOrEqual(t, observed, last)
		last = observed
	}
	assert.True(t, w.HasRowCount())
	assert.Equal(t, int64(500), last)
}

func TestGetRowsRangeChecks(t *testing.T) {
	w := newWindow(t, newTable(t, 100), WithCacheSize(50), WithLookAhead(10))
	ctx := context.Background()

	tests := []struct {
		name          string
		start, length int64
	}{
		{"negative start", -1, 5},
		{"negative length", 0, -5},
		{"span wider than cache minus look-ahead", 0, 41},
		{"start past final count", 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.GetRows(ctx, tt.start, tt.length)
			assert.ErrorIs(t, err, types.ErrOutOfRange)
			assert.True(t, types.IsRecoverable(err))
		})
	}

	rows, err := w.GetRows(ctx, 0, 40)
	require.NoError(t, err)
	assert.Len(t, rows, 40)

	rows, err = w.GetRows(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetRowsPastUnknownEnd(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 30)), WithCacheSize(50), WithLookAhead(10))

	_, err := w.GetRows(context.Background(), 35, 5)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
	assert.True(t, w.HasRowCount())
	n, _ := w.GetRowCount()
	assert.Equal(t, int64(30), n)
}

func TestEmptyTable(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 0)))
	_, err := w.GetRows(context.Background(), 0, 10)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
	n, err := w.GetRowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestClamping(t *testing.T) {
	w := newWindow(t, newTable(t, 10), WithCacheSize(100), WithLookAhead(10))

	assert.Equal(t, 20, w.SetCacheSize(5), "cache size is at least twice the look-ahead")
	assert.Equal(t, 10, w.SetLookAheadSize(50), "look-ahead is at most half the cache size")

	w.SetCacheSize(7)
	assert.Equal(t, 20, w.CacheSize())
	w.SetLookAheadSize(0)
	assert.Equal(t, 1, w.SetCacheSize(0))
	assert.Equal(t, 1, w.SetLookAheadSize(9), "rounds up")
	assert.Equal(t, 0, w.SetLookAheadSize(-3))

	w.SetCacheSize(9)
	assert.Equal(t, 5, w.SetLookAheadSize(100))

	// clamping also applies to constructor options
	w2 := newWindow(t, newTable(t, 10), WithCacheSize(10), WithLookAhead(30))
	assert.Equal(t, 60, w2.CacheSize())
	assert.Equal(t, 30, w2.LookAhead())
}

func TestResizeResets(t *testing.T) {
	src := newCounting(t, 200, false)
	w := newWindow(t, src, WithCacheSize(100), WithLookAhead(10))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)

	w.SetCacheSize(120)
	assert.Equal(t, int64(0), w.IteratorPosition())
	_, closed, _ := src.stats()
	assert.Equal(t, 1, closed)

	_, err = w.GetRows(ctx, 0, 10)
	require.NoError(t, err)
	w.SetLookAheadSize(20)
	assert.Equal(t, int64(0), w.IteratorPosition())
	_, closed, _ = src.stats()
	assert.Equal(t, 2, closed)

	rows, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 0, 9)
	assert.Equal(t, int64(30), w.IteratorPosition())
}

func TestClearKeepsCount(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 300)))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 0, 100)
	require.NoError(t, err)
	observed := w.ObservedRowCount()

	w.Clear()
	assert.Equal(t, int64(0), w.IteratorPosition())
	assert.Equal(t, observed, w.ObservedRowCount())
}

func TestCancellation(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(500), WithLookAhead(50))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.GetRows(ctx, 0, 10)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, types.IsRecoverable(err))

	// the window stays usable
	rows, err := w.GetRows(context.Background(), 0, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 0, 9)
}

func TestCancellationMidAdvance(t *testing.T) {
	src := newCounting(t, 1000, true)
	w := newWindow(t, src, WithCacheSize(100), WithLookAhead(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// row 25 is still delivered, the next read sees the cancellation
	src.onNext = func(pos int64) {
		if pos == 25 {
			cancel()
		}
	}
	_, err := w.GetRows(ctx, 0, 40)
	require.ErrorIs(t, err, types.ErrCancelled)
	src.onNext = nil

	assert.Equal(t, int64(26), w.IteratorPosition())
	assert.Equal(t, int64(26), w.ObservedRowCount())
	assert.False(t, w.HasRowCount())
	assert.Equal(t, int64(1), w.Stats().GetBasicStats()[metrics.Cancelled])

	// rows read before the cancellation are served from the buffer
	_, _, nexts := src.stats()
	rows, err := w.GetRows(context.Background(), 20, 5)
	require.NoError(t, err)
	requireKeys(t, rows, 20, 24)
	_, _, after := src.stats()
	assert.Equal(t, nexts, after)

	// reading on continues with the same iterator
	rows, err = w.GetRows(context.Background(), 20, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 20, 29)
	opened, _, _ := src.stats()
	assert.Equal(t, 1, opened)
	assert.Equal(t, int64(0), w.Stats().GetRebuilds())
}

func TestSourceError(t *testing.T) {
	src := newCounting(t, 100, true)
	src.failAt = 42
	w := newWindow(t, src, WithCacheSize(100), WithLookAhead(10))

	rows, err := w.GetRows(context.Background(), 0, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 0, 9)

	_, err = w.GetRows(context.Background(), 35, 10)
	var srcErr *types.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, int64(42), srcErr.Row)
	assert.False(t, types.IsRecoverable(err))
	assert.Equal(t, int64(42), w.ObservedRowCount())
}

func TestIncludedColumns(t *testing.T) {
	w := newWindow(t, newTable(t, 5), WithIncludedColumns("C", "A"))
	assert.Equal(t, []string{"A", "C"}, w.IncludedColumns())
	assert.Equal(t, []string{"A", "C"}, w.Schema().Names())

	rows, err := w.GetRows(context.Background(), 0, 5)
	require.NoError(t, err)
	v, err := rows[3].Get("A")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	_, err = rows[3].Get("B")
	assert.ErrorIs(t, err, types.ErrColumnNotIncluded)
}

func TestClose(t *testing.T) {
	src := newCounting(t, 100, false)
	w, err := New(src, WithDiscardLog())
	require.NoError(t, err)

	_, err = w.GetRows(context.Background(), 0, 10)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, closed, _ := src.stats()
	assert.Equal(t, 1, closed)
	_, err = w.GetRows(context.Background(), 0, 10)
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestWithConfig(t *testing.T) {
	cfg := types.DefaultCacheConfig()
	cfg.CacheSize = 80
	cfg.LookAhead = 8
	cfg.IncludedColumns = []string{"B"}

	w := newWindow(t, newTable(t, 5), WithConfig(cfg))
	assert.Equal(t, 80, w.CacheSize())
	assert.Equal(t, 8, w.LookAhead())
	assert.Equal(t, []string{"B"}, w.IncludedColumns())
}

func TestNewDerivedInheritsSettings(t *testing.T) {
	orig := newWindow(t, newTable(t, 10), WithCacheSize(300), WithLookAhead(25), WithLogger(logger.NewDiscardLogger()))
	sortStep := types.SortSpec{Columns: []types.SortColumn{{Name: "B"}}}

	derived, err := NewDerived(orig, newTable(t, 10), []string{"A"}, sortStep)
	require.NoError(t, err)
	defer derived.Close()

	assert.Equal(t, 300, derived.CacheSize())
	assert.Equal(t, 25, derived.LookAhead())
	assert.Equal(t, []string{"A"}, derived.IncludedColumns())
	assert.Equal(t, []types.Transformation{sortStep}, derived.TransformationLog())
	assert.Empty(t, orig.TransformationLog())
}

func TestBackgroundCount(t *testing.T) {
	w := newWindow(t, source.UnknownSize(newTable(t, 5000)))
	ctx := context.Background()

	_, err := w.GetRows(ctx, 0, 10)
	require.NoError(t, err)

	job := rowcount.CountInBackground(ctx, w.Source(), w.SetRowCount)
	n, err := job.Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), n)
	assert.True(t, w.HasRowCount())

	rows, err := w.GetRows(ctx, 4995, 10)
	require.NoError(t, err)
	requireKeys(t, rows, 4995, 4999)
}
