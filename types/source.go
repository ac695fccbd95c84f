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

package types

import "context"

// RowSource is an immutable table that can only be read forward.
type RowSource interface {
	// Schema returns the full column list of the table
	Schema() *Schema
	// KnownSize returns the total row count when the source knows it up front
	KnownSize() (int64, bool)
	// OpenIterator opens a new iterator positioned before the first row.
	// When included is not nil only those columns are materialized.
	OpenIterator(ctx context.Context, included []string) (RowIterator, error)
}

// RowIterator is a closeable forward iterator. Next returns io.EOF after
// the last row.
type RowIterator interface {
	Next() (*Row, error)
	Close() error
}

// RowIteratorFunc adapts a function to a RowIterator with a close hook
type RowIteratorFunc struct {
	NextFunc  func() (*Row, error)
	CloseFunc func() error
}

func (f RowIteratorFunc) Next() (*Row, error) {
	return f.NextFunc()
}

func (f RowIteratorFunc) Close() error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc()
}

// ProgressFunc receives progress updates in the range [0, 1].
// Cancellation is signalled through the context passed with it.
type ProgressFunc func(fraction float64, message string)

// Report calls the function when it is set
func (f ProgressFunc) Report(fraction float64, message string) {
	if f == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	f(fraction, message)
}

// CheckCancelled returns ErrCancelled when ctx is done
func CheckCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return &CancelledError{Cause: ctx.Err()}
	default:
		return nil
	}
}

// RowSink collects rows into a new materialized source. Commit publishes the
// source, Abort discards everything written so far.
type RowSink interface {
	Write(row *Row) error
	Commit() (RowSource, error)
	Abort() error
}

// Materializer creates sinks for derived tables
type Materializer interface {
	NewSink(schema *Schema, sizeHint int64) (RowSink, error)
}
