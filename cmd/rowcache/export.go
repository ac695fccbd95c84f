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
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/rulego/rowcache/source"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // flag values
var (
	exportOut      string
	exportRedisURL string
	exportRedisKey string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the transformed table as JSON lines",
	Long: `Write the table, after applying --where, --sort and --columns, to a JSON
lines file or append it to a Redis list.

Examples:
  rowcache export orders.csv --type price:float --sort price:desc --out sorted.jsonl
  rowcache export orders.csv --out-redis redis://localhost:6379/0 --out-key orders`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "JSON lines file to write")
	exportCmd.Flags().StringVar(&exportRedisURL, "out-redis", "", "Redis URL to write to")
	exportCmd.Flags().StringVar(&exportRedisKey, "out-key", "", "Redis list to append to (with --out-redis)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportOut == "" && exportRedisURL == "" {
		return errors.New("export needs --out or --out-redis")
	}
	if exportRedisURL != "" && exportRedisKey == "" {
		return errors.New("--out-redis needs --out-key")
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, args)
	if err != nil {
		return err
	}
	defer s.Close()

	src, err := source.Project(s.window.Source(), s.window.IncludedColumns())
	if err != nil {
		return err
	}

	var n int64
	if exportOut != "" {
		n, err = source.WriteJSONL(ctx, src, exportOut)
		if err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		log.WithField("file", exportOut).Infof("exported %s rows", humanize.Comma(n))
	}
	if exportRedisURL != "" {
		opt, err := redis.ParseURL(exportRedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opt)
		defer client.Close()
		n, err = source.WriteRedisList(ctx, client, exportRedisKey, src)
		if err != nil {
			return fmt.Errorf("write redis list %s: %w", exportRedisKey, err)
		}
		log.WithField("key", exportRedisKey).Infof("exported %s rows", humanize.Comma(n))
	}
	return s.printStats()
}
