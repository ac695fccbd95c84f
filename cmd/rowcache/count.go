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
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/rowcount"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var countCmd = &cobra.Command{
	Use:   "count [file]",
	Short: "Count the rows of a table",
	Long: `Count the rows of a table after applying --where. Sources without a
known size are scanned once in the background.

Examples:
  rowcache count events.jsonl
  rowcache count orders.csv --where "status == 'open'"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, args)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	n, err := countRows(ctx, s.window)
	if err != nil {
		return err
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Debug("counted rows")

	fmt.Fprintf(cmd.OutOrStdout(), "%s rows\n", humanize.Comma(n))
	return s.printStats()
}

// countRows returns the final row count of w, scanning the source when the
// window does not know it yet. The scan result is used as is: an empty
// table or a provisional count equal to the scan is not raised by
// SetRowCount.
func countRows(ctx context.Context, w *rowcache.CacheWindow) (int64, error) {
	if w.HasRowCount() {
		return w.GetRowCount()
	}
	job := rowcount.CountInBackground(ctx, w.Source(), w.SetRowCount)
	n, err := job.Wait()
	if err != nil {
		return 0, err
	}
	return n, nil
}
