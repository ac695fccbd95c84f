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
	"io"

	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/metrics"
	"github.com/rulego/rowcache/rowcount"
	"github.com/rulego/rowcache/types"
	"github.com/rulego/rowcache/utils/ringbuf"
)

// CacheWindow 是对只能向前遍历的表的窗口缓存。
// 最近读取的 CacheSize 行保存在环形缓冲区中，按绝对行号寻址；
// 请求之外额外预读 LookAhead 行，用于平滑滚动。
//
// 向后跳出缓冲区时会重新打开迭代器并从头读取。
// GetRows 的调用方需要自行串行化；行数跟踪器可以被后台计数协程并发更新。
//
// 使用示例:
//
//	w, err := rowcache.New(src, rowcache.WithCacheSize(1000))
//	rows, err := w.GetRows(ctx, 0, 100)
//	defer w.Close()
type CacheWindow struct {
	src      types.RowSource
	schema   *types.Schema
	included []string

	cacheSize int
	lookAhead int
	ring      *ringbuf.Ring[*types.Row]

	// iter is the live forward iterator; ring.Next() is its position
	iter      types.RowIterator
	exhausted bool

	tracker *rowcount.Tracker
	log     []types.Transformation

	logger logger.Logger
	stats  *metrics.StatsCollector
	closed bool
}

// New 创建绑定到 src 的缓存窗口。
// 如果 src 报告了已知的行数，行数从一开始就是确定的。
//
// 参数:
//   - src: 行数据源
//   - opts: 配置选项
//
// 示例:
//
//	w, err := rowcache.New(src,
//	    rowcache.WithCacheSize(200),
//	    rowcache.WithLookAhead(20),
//	    rowcache.WithIncludedColumns("A", "C"))
func New(src types.RowSource, opts ...Option) (*CacheWindow, error) {
	if src == nil {
		return nil, errors.New("rowcache: nil row source")
	}
	w := &CacheWindow{
		src:       src,
		cacheSize: types.DefaultCacheSize,
		lookAhead: types.DefaultLookAhead,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.GetDefault()
	}
	if w.stats == nil {
		w.stats = metrics.NewStatsCollector()
	}

	schema, err := src.Schema().Project(w.included)
	if err != nil {
		return nil, fmt.Errorf("included columns: %w", err)
	}
	w.schema = schema
	if w.included != nil {
		w.included = schema.Names()
	}

	if w.lookAhead < 0 {
		w.lookAhead = 0
	}
	w.cacheSize = clampCacheSize(w.cacheSize, w.lookAhead)
	w.ring = ringbuf.New[*types.Row](w.cacheSize)

	if n, ok := src.KnownSize(); ok {
		w.tracker = rowcount.NewFinalTracker(n)
	} else {
		w.tracker = rowcount.NewTracker()
	}
	w.tracker.OnFinal(func(count int64) {
		w.logger.Info("row count final: %d rows", count)
	})
	return w, nil
}

func clampCacheSize(n, lookAhead int) int {
	if n < 2*lookAhead {
		n = 2 * lookAhead
	}
	if n < 1 {
		n = 1
	}
	return n
}

func clampLookAhead(n, cacheSize int) int {
	if n < 0 {
		return 0
	}
	if limit := (cacheSize + 1) / 2; n > limit {
		return limit
	}
	return n
}

// GetRows 返回从 start 开始的最多 length 行。
// 在行数确定时，超出表尾的部分会被截断；start 在表尾之后返回 ErrOutOfRange。
// length 不能超过 CacheSize-LookAhead。
//
// ctx 用于取消：每读取一行新数据检查一次。取消后返回 ErrCancelled，
// 已读取的行保留在缓存中。
func (w *CacheWindow) GetRows(ctx context.Context, start, length int64) ([]*types.Row, error) {
	if w.closed {
		return nil, types.ErrClosed
	}
	if start < 0 || length < 0 {
		return nil, types.OutOfRangef("negative start %d or length %d", start, length)
	}
	if maxLen := int64(w.cacheSize - w.lookAhead); length > maxLen {
		return nil, types.OutOfRangef("length %d exceeds cache size %d minus look-ahead %d",
			length, w.cacheSize, w.lookAhead)
	}

	observed, state := w.tracker.Snapshot()
	final := state == rowcount.Final
	if final && start >= observed {
		return nil, types.OutOfRangef("start %d beyond row count %d", start, observed)
	}
	if length == 0 {
		return []*types.Row{}, nil
	}

	lastRow := start + length - 1
	if final && lastRow >= observed {
		lastRow = observed - 1
	}
	// a provisional count touching the last observed row has to be pushed forward
	push := !final && lastRow >= observed-1

	if !push && w.ring.Contains(start, lastRow) {
		w.stats.IncrementHit()
		return w.ring.Range(start, lastRow), nil
	}
	w.stats.IncrementMiss()

	if start < w.ring.Oldest() {
		w.logger.Debug("row %d evicted (oldest %d), rebuilding iterator", start, w.ring.Oldest())
		w.stats.IncrementRebuild()
		w.resetIterator()
	}

	target := lastRow + int64(w.lookAhead)
	if err := w.advance(ctx, target); err != nil {
		return nil, err
	}

	end := lastRow
	if next := w.ring.Next(); end >= next {
		end = next - 1
	}
	if start > end {
		// the iterator ran dry before reaching start
		return nil, types.OutOfRangef("start %d beyond row count %d", start, w.ring.Next())
	}
	return w.ring.Range(start, end), nil
}

// advance reads rows until target is cached or the source is exhausted.
// A final count caps the read so the iterator never passes it.
func (w *CacheWindow) advance(ctx context.Context, target int64) error {
	if observed, state := w.tracker.Snapshot(); state == rowcount.Final && target >= observed {
		target = observed - 1
	}
	if w.ring.Next() > target || w.exhausted {
		return nil
	}
	if err := w.openIterator(ctx); err != nil {
		return err
	}

	var fetched int64
	defer func() { w.stats.AddRowsFetched(fetched) }()
	for w.ring.Next() <= target {
		if err := types.CheckCancelled(ctx); err != nil {
			w.stats.IncrementCancelled()
			return err
		}
		row, err := w.iter.Next()
		if errors.Is(err, io.EOF) {
			w.exhausted = true
			w.tracker.Exhausted(w.ring.Next())
			return nil
		}
		if err != nil {
			w.stats.IncrementSourceError()
			return &types.SourceError{Op: "next", Row: w.ring.Next(), Err: err}
		}
		pos := w.ring.Push(row)
		w.tracker.Observe(pos + 1)
		fetched++
	}
	return nil
}

func (w *CacheWindow) openIterator(ctx context.Context) error {
	if w.iter != nil {
		return nil
	}
	// the iterator outlives this request, only cancellation is per call
	it, err := w.src.OpenIterator(context.WithoutCancel(ctx), w.included)
	if err != nil {
		w.stats.IncrementSourceError()
		return &types.SourceError{Op: "open", Row: -1, Err: err}
	}
	w.iter = it
	w.exhausted = false
	return nil
}

// resetIterator releases the iterator and empties the buffer. The observed
// count is kept.
func (w *CacheWindow) resetIterator() {
	if w.iter != nil {
		if err := w.iter.Close(); err != nil {
			w.logger.Warn("close iterator: %v", err)
		}
		w.iter = nil
	}
	w.exhausted = false
	w.ring.Reset()
}

// GetRowCount 返回确定的总行数，行数尚未确定时返回 ErrUnknownCount
func (w *CacheWindow) GetRowCount() (int64, error) {
	return w.tracker.Count()
}

// HasRowCount reports whether the row count is final
func (w *CacheWindow) HasRowCount() bool {
	return w.tracker.IsFinal()
}

// ObservedRowCount returns the rows seen so far, a lower bound while the
// count is not final
func (w *CacheWindow) ObservedRowCount() int64 {
	return w.tracker.Observed()
}

// SetRowCount 应用外部得到的行数（例如后台计数任务的结果）。
// 只有 count 大于已观察到的行数时才生效，生效后的状态严格等于 isFinal。
// 可以从其他协程调用。
func (w *CacheWindow) SetRowCount(count int64, isFinal bool) {
	if w.tracker.Assert(count, isFinal) {
		w.logger.Debug("row count set to %d (final=%v)", count, isFinal)
	}
}

// SetCacheSize 修改缓冲区容量并重置缓存。容量至少为 2*LookAhead。
// 返回实际生效的容量。
func (w *CacheWindow) SetCacheSize(n int) int {
	w.cacheSize = clampCacheSize(n, w.lookAhead)
	w.resetIterator()
	w.ring = ringbuf.New[*types.Row](w.cacheSize)
	w.stats.IncrementReset()
	w.logger.Debug("cache size set to %d", w.cacheSize)
	return w.cacheSize
}

// SetLookAheadSize 修改预读行数并重置缓存。预读行数不超过容量的一半（向上取整）。
// 返回实际生效的预读行数。
func (w *CacheWindow) SetLookAheadSize(n int) int {
	w.lookAhead = clampLookAhead(n, w.cacheSize)
	w.resetIterator()
	w.stats.IncrementReset()
	w.logger.Debug("look-ahead set to %d", w.lookAhead)
	return w.lookAhead
}

// Clear drops all cached rows and the iterator. The row count is kept.
func (w *CacheWindow) Clear() {
	w.resetIterator()
	w.stats.IncrementReset()
	w.logger.Debug("cache cleared")
}

// Close releases the iterator. Further reads fail with ErrClosed.
func (w *CacheWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.iter != nil {
		err = w.iter.Close()
		w.iter = nil
	}
	w.ring.Reset()
	return err
}

// CacheSize returns the ring buffer capacity in rows
func (w *CacheWindow) CacheSize() int {
	return w.cacheSize
}

// LookAhead returns how many rows are read past each request
func (w *CacheWindow) LookAhead() int {
	return w.lookAhead
}

// IncludedColumns returns the projected columns, nil when all are included
func (w *CacheWindow) IncludedColumns() []string {
	if w.included == nil {
		return nil
	}
	return append([]string(nil), w.included...)
}

// Source returns the table the window reads from, before column projection
func (w *CacheWindow) Source() types.RowSource {
	return w.src
}

// Schema returns the schema of the rows returned by GetRows
func (w *CacheWindow) Schema() *types.Schema {
	return w.schema
}

// TransformationLog returns the transformations that produced this table,
// oldest first
func (w *CacheWindow) TransformationLog() []types.Transformation {
	return append([]types.Transformation(nil), w.log...)
}

// IteratorPosition is the number of rows consumed from the current iterator
func (w *CacheWindow) IteratorPosition() int64 {
	return w.ring.Next()
}

// Logger 返回窗口使用的日志器，派生窗口共用同一个
func (w *CacheWindow) Logger() logger.Logger {
	return w.logger
}

// Stats returns the collector counting this window's activity. Derived
// windows share it with their original.
func (w *CacheWindow) Stats() *metrics.StatsCollector {
	return w.stats
}

// NewDerived 为变换结果创建新的缓存窗口，继承原窗口的容量、预读行数、日志器和统计收集器，
// 变换记录在原记录之后追加 applied。
// 预读行数取自原窗口的 LookAhead，而不是它的容量。
func NewDerived(orig *CacheWindow, src types.RowSource, included []string,
	applied ...types.Transformation) (*CacheWindow, error) {
	log := make([]types.Transformation, 0, len(orig.log)+len(applied))
	log = append(log, orig.log...)
	log = append(log, applied...)
	return New(src,
		WithCacheSize(orig.cacheSize),
		WithLookAhead(orig.lookAhead),
		WithIncludedColumns(included...),
		WithLogger(orig.logger),
		WithMetrics(orig.stats),
		withTransformationLog(log),
	)
}
