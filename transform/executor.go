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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/condition"
	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/sorter"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/types"
)

// rows between progress reports while filtering
const reportEvery = 1024

// Executor applies a frozen list of steps
type Executor struct {
	orig  *rowcache.CacheWindow
	steps []types.Transformation

	sorter       types.Sorter
	materializer types.Materializer
	results      *ResultCache
	timeout      time.Duration
	logger       logger.Logger
}

func newExecutor(orig *rowcache.CacheWindow, steps []types.Transformation, opts []Option) *Executor {
	e := &Executor{orig: orig, steps: steps}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = orig.Logger()
	}
	if e.materializer == nil {
		e.materializer = source.MemoryMaterializer{}
	}
	if e.sorter == nil {
		e.sorter = &sorter.BTreeSorter{Materializer: e.materializer, Logger: e.logger}
	}
	return e
}

// Steps returns the steps in application order
func (e *Executor) Steps() []types.Transformation {
	return append([]types.Transformation(nil), e.steps...)
}

// table is the state threaded through the steps
type table struct {
	src      types.RowSource
	included []string
	// rowCount is -1 while unknown
	rowCount int64
}

func (t table) schema() (*types.Schema, error) {
	return t.src.Schema().Project(t.included)
}

// Apply 依次执行所有步骤并返回新的缓存窗口。
// 所有步骤都是直通（例如没有列的排序）时返回原窗口本身。
// 取消或失败时不会创建新窗口，原窗口保持不变。
//
// 参数:
//   - ctx: 取消句柄，每个步骤之间以及每行都会检查
//   - progress: 进度回调，可以为 nil
func (e *Executor) Apply(ctx context.Context, progress types.ProgressFunc) (*rowcache.CacheWindow, error) {
	if e.isPassthrough() {
		progress.Report(1, "nothing to do")
		return e.orig, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	cur := table{
		src:      e.orig.Source(),
		included: e.orig.IncludedColumns(),
		rowCount: -1,
	}
	if n, err := e.orig.GetRowCount(); err == nil {
		cur.rowCount = n
	} else if n, ok := cur.src.KnownSize(); ok {
		cur.rowCount = n
	}

	var applied []types.Transformation
	total := float64(len(e.steps))
	for i, step := range e.steps {
		if err := types.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		base := float64(i)
		stepProgress := types.ProgressFunc(func(fraction float64, message string) {
			progress.Report((base+fraction)/total, message)
		})

		next, changed, err := e.apply(ctx, cur, step, stepProgress)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step, err)
		}
		cur = next
		if changed {
			applied = append(applied, step)
		}
		stepProgress.Report(1, step.String())
	}
	if err := types.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	derived, err := rowcache.NewDerived(e.orig, cur.src, cur.included, applied...)
	if err != nil {
		return nil, err
	}
	rows := "unknown"
	if cur.rowCount >= 0 {
		rows = humanize.Comma(cur.rowCount)
	}
	e.logger.Info("applied %d transformations in %s, %s rows", len(applied),
		time.Since(start).Round(time.Millisecond), rows)
	return derived, nil
}

func (e *Executor) isPassthrough() bool {
	for _, step := range e.steps {
		if s, ok := step.(types.SortSpec); !ok || !s.IsNatural() {
			return false
		}
	}
	return true
}

// apply is the single interpreter of the step variants. It reports whether
// the step changed the table.
func (e *Executor) apply(ctx context.Context, cur table, step types.Transformation,
	progress types.ProgressFunc) (table, bool, error) {
	switch s := step.(type) {
	case types.SortSpec:
		if s.IsNatural() {
			return cur, false, nil
		}
		return e.sort(ctx, cur, s, progress)
	case types.ColumnFilterSpec:
		next, err := filterColumns(cur, s)
		return next, err == nil, err
	case types.RowFilterSpec:
		return e.filterRows(ctx, cur, s, progress)
	default:
		return cur, false, fmt.Errorf("unsupported transformation %T", step)
	}
}

func (e *Executor) sort(ctx context.Context, cur table, spec types.SortSpec,
	progress types.ProgressFunc) (table, bool, error) {
	visible, err := cur.schema()
	if err != nil {
		return cur, false, err
	}
	for _, col := range spec.Columns {
		if col.Name == types.RowKeyColumn || visible.Has(col.Name) {
			continue
		}
		if cur.src.Schema().Has(col.Name) {
			return cur, false, fmt.Errorf("%w: %s", types.ErrColumnNotIncluded, col.Name)
		}
		return cur, false, fmt.Errorf("%w: %s", types.ErrUnknownColumn, col.Name)
	}

	key := resultKey(cur.src, nil, spec)
	if res, ok := e.results.get(key, cur.src); ok {
		e.logger.Debug("reusing sorted result for %s", spec)
		return table{src: res.src, included: cur.included, rowCount: res.rowCount}, true, nil
	}

	sorted, err := e.sorter.Sort(ctx, types.SortRequest{
		Source:       cur.src,
		RowCountHint: cur.rowCount,
		Columns:      spec.Columns,
		MissingLast:  spec.MissingLast,
		Progress:     progress,
	})
	if err != nil {
		return cur, false, err
	}
	n := cur.rowCount
	if size, ok := sorted.KnownSize(); ok {
		n = size
	}
	e.results.put(key, cachedResult{input: cur.src, src: sorted, rowCount: n})
	return table{src: sorted, included: cur.included, rowCount: n}, true, nil
}

// filterColumns intersects the included columns with the requested ones
func filterColumns(cur table, spec types.ColumnFilterSpec) (table, error) {
	schema := cur.src.Schema()
	want := make(map[string]bool, len(spec.Columns))
	for _, name := range spec.Columns {
		if !schema.Has(name) {
			return cur, fmt.Errorf("%w: %s", types.ErrUnknownColumn, name)
		}
		want[name] = true
	}
	visible, err := cur.schema()
	if err != nil {
		return cur, err
	}
	included := make([]string, 0, len(want))
	for _, name := range visible.Names() {
		if want[name] {
			included = append(included, name)
		}
	}
	return table{src: cur.src, included: included, rowCount: cur.rowCount}, nil
}

// filterRows materializes the rows matching the expression. Only the
// included columns are read and written.
func (e *Executor) filterRows(ctx context.Context, cur table, spec types.RowFilterSpec,
	progress types.ProgressFunc) (table, bool, error) {
	cond, err := condition.NewExprCondition(spec.Expression)
	if err != nil {
		return cur, false, err
	}
	schema, err := cur.schema()
	if err != nil {
		return cur, false, err
	}

	key := resultKey(cur.src, cur.included, spec)
	if res, ok := e.results.get(key, cur.src); ok {
		e.logger.Debug("reusing filtered result for %s", spec)
		return table{src: res.src, included: cur.included, rowCount: res.rowCount}, true, nil
	}

	it, err := cur.src.OpenIterator(ctx, cur.included)
	if err != nil {
		return cur, false, &types.SourceError{Op: "open", Row: -1, Err: err}
	}
	defer it.Close()

	sink, err := e.materializer.NewSink(schema, cur.rowCount)
	if err != nil {
		return cur, false, err
	}
	var read, kept int64
	for {
		if err = types.CheckCancelled(ctx); err != nil {
			break
		}
		var row *types.Row
		row, err = it.Next()
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			err = &types.SourceError{Op: "next", Row: read, Err: err}
			break
		}
		read++
		if cond.Match(row) {
			if err = sink.Write(row); err != nil {
				break
			}
			kept++
		}
		if read%reportEvery == 0 && cur.rowCount > 0 {
			progress.Report(float64(read)/float64(cur.rowCount), "filtering rows")
		}
	}
	if err != nil {
		_ = sink.Abort()
		return cur, false, err
	}

	filtered, err := sink.Commit()
	if err != nil {
		return cur, false, err
	}
	e.logger.Debug("%s kept %s of %s rows", spec, humanize.Comma(kept), humanize.Comma(read))
	e.results.put(key, cachedResult{input: cur.src, src: filtered, rowCount: kept})
	return table{src: filtered, included: cur.included, rowCount: kept}, true, nil
}
