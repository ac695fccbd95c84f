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

package rowcount

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rulego/rowcache/types"
)

// progressEvery is the number of rows between progress reports
const progressEvery = 1000

// Count scans a fresh iterator of src to exhaustion and returns the number of
// rows. No columns are materialized. A known size is returned without scanning.
func Count(ctx context.Context, src types.RowSource, progress types.ProgressFunc) (int64, error) {
	if n, ok := src.KnownSize(); ok {
		progress.Report(1, "row count known")
		return n, nil
	}

	it, err := src.OpenIterator(ctx, []string{})
	if err != nil {
		return 0, &types.SourceError{Op: "open", Row: -1, Err: err}
	}
	defer it.Close()

	var n int64
	for {
		if err := types.CheckCancelled(ctx); err != nil {
			return n, err
		}
		_, err := it.Next()
		if errors.Is(err, io.EOF) {
			progress.Report(1, "row count complete")
			return n, nil
		}
		if err != nil {
			return n, &types.SourceError{Op: "next", Row: n, Err: err}
		}
		n++
		if n%progressEvery == 0 {
			// the total is unknown, only the message carries information
			progress.Report(0, "counted rows")
		}
	}
}

// Job is a background count started by CountInBackground
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	count int64
	err   error
}

// CountInBackground counts src in a goroutine and hands the final count to
// assert, typically CacheWindow.SetRowCount, which takes its own lock.
func CountInBackground(ctx context.Context, src types.RowSource,
	assert func(count int64, isFinal bool)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)
		defer cancel()

		n, err := Count(ctx, src, nil)
		job.mu.Lock()
		job.count, job.err = n, err
		job.mu.Unlock()

		if err == nil && assert != nil {
			assert(n, true)
		}
	}()
	return job
}

// Cancel stops the count. Wait still has to be called to observe the result.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed when the count has finished
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the count finished and returns its result
func (j *Job) Wait() (int64, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count, j.err
}
