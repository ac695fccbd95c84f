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
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/types"
	"github.com/rulego/rowcache/utils/table"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // flag values
var (
	pageStart  int64
	pageLength int64
	pageJSON   bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var pageCmd = &cobra.Command{
	Use:   "page [file]",
	Short: "Print a page of rows",
	Long: `Print rows [start, start+length) of a table, after applying --where,
--sort and --columns.

Examples:
  rowcache page orders.csv --start 1000 --length 20
  rowcache page orders.csv --type price:float --sort price:desc --missing-last --columns name,price
  rowcache page --db shop.db --query "SELECT * FROM orders" --where "price > 10"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPage,
}

func init() {
	pageCmd.Flags().Int64Var(&pageStart, "start", 0, "first row")
	pageCmd.Flags().Int64Var(&pageLength, "length", 20, "number of rows")
	pageCmd.Flags().BoolVar(&pageJSON, "json", false, "print one JSON object per row")
}

func runPage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, args)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.window.GetRows(ctx, pageStart, pageLength)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if pageJSON {
		err = writeJSONRows(out, rows)
	} else {
		err = table.PrintRows(out, s.window.Schema(), rows, pageFooter(s.window, pageStart, len(rows)))
	}
	if err != nil {
		return err
	}
	return s.printStats()
}

func writeJSONRows(w io.Writer, rows []*types.Row) error {
	for _, row := range rows {
		data, err := json.Marshal(row.ToDict())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
	}
	return nil
}

func pageFooter(w *rowcache.CacheWindow, start int64, n int) string {
	if n == 0 {
		return "(0 rows)"
	}
	last := start + int64(n) - 1
	if count, err := w.GetRowCount(); err == nil {
		return fmt.Sprintf("rows %s-%s of %s", humanize.Comma(start), humanize.Comma(last), humanize.Comma(count))
	}
	return fmt.Sprintf("rows %s-%s of at least %s", humanize.Comma(start), humanize.Comma(last),
		humanize.Comma(w.ObservedRowCount()))
}
