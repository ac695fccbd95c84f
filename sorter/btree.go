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

// Package sorter sorts whole tables. The default BTreeSorter reads every
// row of the source into an ordered btree and writes the rows back out in
// key order through a Materializer.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/btree"
	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/types"
)

const (
	defaultDegree = 32
	// rows between progress reports and cancellation checks while writing
	reportEvery = 1024
)

// BTreeSorter is a stable in-memory sorter
type BTreeSorter struct {
	Degree       int
	Materializer types.Materializer
	Logger       logger.Logger
}

// NewBTreeSorter returns a sorter materializing into memory
func NewBTreeSorter() *BTreeSorter {
	return &BTreeSorter{Degree: defaultDegree, Materializer: source.MemoryMaterializer{}}
}

type sortItem struct {
	row  *types.Row
	keys []interface{}
	seq  int64
	cmp  *RowComparator
}

// Less orders by key and then by arrival so equal keys keep their input order
func (i *sortItem) Less(than btree.Item) bool {
	other := than.(*sortItem)
	if r := i.cmp.CompareKeys(i.keys, other.keys); r != 0 {
		return r < 0
	}
	return i.seq < other.seq
}

func (s *BTreeSorter) log() logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.GetDefault()
}

// Sort reads req.Source to exhaustion and returns the sorted table. The
// context is checked for every row; a cancelled sort commits nothing.
func (s *BTreeSorter) Sort(ctx context.Context, req types.SortRequest) (types.RowSource, error) {
	schema := req.Source.Schema()
	cmp, err := NewRowComparator(schema, req.Columns, req.MissingLast)
	if err != nil {
		return nil, err
	}

	degree := s.Degree
	if degree < 2 {
		degree = defaultDegree
	}
	tree := btree.New(degree)

	it, err := req.Source.OpenIterator(ctx, nil)
	if err != nil {
		return nil, &types.SourceError{Op: "open", Row: -1, Err: err}
	}
	defer it.Close()

	var seq int64
	for {
		if err := types.CheckCancelled(ctx); err != nil {
			return nil, err
		}
		row, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &types.SourceError{Op: "next", Row: seq, Err: err}
		}
		keys, err := cmp.Keys(row)
		if err != nil {
			return nil, err
		}
		tree.ReplaceOrInsert(&sortItem{row: row, keys: keys, seq: seq, cmp: cmp})
		seq++
		if seq%reportEvery == 0 && req.RowCountHint > 0 {
			req.Progress.Report(0.5*float64(seq)/float64(req.RowCountHint), "reading rows")
		}
	}
	req.Progress.Report(0.5, fmt.Sprintf("sorting %d rows", seq))

	materializer := s.Materializer
	if materializer == nil {
		materializer = source.MemoryMaterializer{}
	}
	sink, err := materializer.NewSink(schema, seq)
	if err != nil {
		return nil, err
	}

	var written int64
	var writeErr error
	tree.Ascend(func(item btree.Item) bool {
		if written%reportEvery == 0 {
			if writeErr = types.CheckCancelled(ctx); writeErr != nil {
				return false
			}
			if seq > 0 {
				req.Progress.Report(0.5+0.5*float64(written)/float64(seq), "writing sorted rows")
			}
		}
		if writeErr = sink.Write(item.(*sortItem).row); writeErr != nil {
			return false
		}
		written++
		return true
	})
	if writeErr != nil {
		_ = sink.Abort()
		return nil, writeErr
	}

	sorted, err := sink.Commit()
	if err != nil {
		return nil, err
	}
	req.Progress.Report(1, "sorted")
	s.log().Debug("sorted %d rows by %v", seq, req.Columns)
	return sorted, nil
}
