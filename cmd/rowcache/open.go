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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/v9"
	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/metrics"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/transform"
	"github.com/rulego/rowcache/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNoSource = errors.New("no table given: pass a file, --db with --query, or --redis with --key")

//nolint:gochecknoglobals // flag values
var (
	dbPath    string
	query     string
	keyColumn string
	csvTypes  []string
	sqlCount  bool
	redisURL  string
	redisKey  string

	sortSpec    string
	missingLast bool
	columns     []string
	where       string
	cacheSize   int
	lookAhead   int
	showStats   bool
)

func addSourceFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&dbPath, "db", "", "SQLite database file")
	flags.StringVar(&query, "query", "", "SQL query producing the table (with --db)")
	flags.StringVar(&keyColumn, "key-column", "", "column used as row key (CSV and SQL)")
	flags.StringSliceVar(&csvTypes, "type", nil, "CSV column types, e.g. price:float,qty:int (string, int, float, bool, time)")
	flags.BoolVar(&sqlCount, "sql-count", false, "run COUNT(*) up front so the row count is known")
	flags.StringVar(&redisURL, "redis", "", "Redis URL, e.g. redis://localhost:6379/0")
	flags.StringVar(&redisKey, "key", "", "Redis list holding one JSON object per row")
}

func addTransformFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&sortSpec, "sort", "", "sort columns, e.g. price:desc,name")
	flags.BoolVar(&missingLast, "missing-last", false, "sort missing values after all others")
	flags.StringSliceVar(&columns, "columns", nil, "only show these columns")
	flags.StringVar(&where, "where", "", "row filter expression, e.g. \"price > 10 && like_match(name, 'a%')\"")
	flags.IntVar(&cacheSize, "cache-size", 0, "ring buffer capacity (default from config)")
	flags.IntVar(&lookAhead, "look-ahead", -1, "rows read past each request (default from config)")
	flags.BoolVar(&showStats, "stats", false, "print cache metrics in prometheus text format when done")
}

// openSource opens the table named by the flags or the file argument. The
// returned function releases connections.
func openSource(ctx context.Context, args []string) (types.RowSource, string, func(), error) {
	noop := func() {}
	switch {
	case dbPath != "":
		if query == "" {
			return nil, "", noop, errors.New("--db needs --query")
		}
		db, err := sql.Open("sqlite3", dbPath)
		if err != nil {
			return nil, "", noop, err
		}
		var opts []source.SQLOption
		if keyColumn != "" {
			opts = append(opts, source.WithSQLKeyColumn(keyColumn))
		}
		if sqlCount {
			opts = append(opts, source.WithSQLCount())
		}
		src, err := source.NewSQLSource(ctx, db, query, opts...)
		if err != nil {
			_ = db.Close()
			return nil, "", noop, err
		}
		return src, filepath.Base(dbPath), func() { _ = db.Close() }, nil

	case redisURL != "":
		if redisKey == "" {
			return nil, "", noop, errors.New("--redis needs --key")
		}
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, "", noop, err
		}
		client := redis.NewClient(opt)
		src, err := source.NewRedisListSource(ctx, client, redisKey)
		if err != nil {
			_ = client.Close()
			return nil, "", noop, err
		}
		return src, redisKey, func() { _ = client.Close() }, nil

	case len(args) == 1:
		src, err := openFile(args[0])
		return src, filepath.Base(args[0]), noop, err
	}
	return nil, "", noop, errNoSource
}

func openFile(path string) (types.RowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		opts, err := csvOptions()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts = append(opts, source.WithCSVComma('\t'))
		}
		return source.OpenCSV(path, opts...)
	case ".jsonl", ".ndjson", ".json":
		return source.OpenJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func csvOptions() ([]source.CSVOption, error) {
	var opts []source.CSVOption
	if keyColumn != "" {
		opts = append(opts, source.WithCSVKeyColumn(keyColumn))
	}
	for _, spec := range csvTypes {
		name, typ, ok := strings.Cut(spec, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --type %q, want column:type", spec)
		}
		t := types.ColumnType(strings.ToLower(strings.TrimSpace(typ)))
		switch t {
		case types.TypeString, types.TypeInt, types.TypeFloat, types.TypeBool, types.TypeTime:
		default:
			return nil, fmt.Errorf("invalid --type %q: unknown type %q", spec, typ)
		}
		opts = append(opts, source.WithCSVColumnType(strings.TrimSpace(name), t))
	}
	return opts, nil
}

// session is an opened table with the requested transformations applied
type session struct {
	name     string
	window   *rowcache.CacheWindow
	registry *prometheus.Registry
	closers  []func()
}

func (s *session) Close() {
	if s.window != nil {
		_ = s.window.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openSession opens the table, builds the cache window and applies
// --sort, --columns and --where.
func openSession(ctx context.Context, args []string) (*session, error) {
	src, name, closeSrc, err := openSource(ctx, args)
	if err != nil {
		return nil, err
	}
	s := &session{name: name, closers: []func(){closeSrc}}

	stats := metrics.NewStatsCollector()
	opts := []rowcache.Option{
		rowcache.WithConfig(*cfg),
		rowcache.WithLogger(logger.WithField(logger.GetDefault(), "table", name)),
		rowcache.WithMetrics(stats),
	}
	if cacheSize > 0 {
		opts = append(opts, rowcache.WithCacheSize(cacheSize))
	}
	if lookAhead >= 0 {
		opts = append(opts, rowcache.WithLookAhead(lookAhead))
	}
	orig, err := rowcache.New(src, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.window = orig

	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		if _, err := metrics.Register(s.registry, stats, cfg.Metrics.Namespace, name); err != nil {
			s.Close()
			return nil, err
		}
	}

	spillDir, removeSpill, err := newSpillDir(cfg.Transform.SpillDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	// 派生表关闭后再删除溢出文件
	s.closers = append(s.closers, removeSpill)

	derived, err := applyTransforms(ctx, orig, spillDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	if derived != orig {
		// derived windows share the collector of the original
		s.closers = append(s.closers, func() { _ = orig.Close() })
		s.window = derived
	}
	return s, nil
}

// newSpillDir creates a private directory under base for the derived tables
// of one session. The returned function removes it with everything in it.
// An empty base keeps derived tables in memory.
func newSpillDir(base string) (string, func(), error) {
	if base == "" {
		return "", func() {}, nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", nil, fmt.Errorf("create spill directory: %w", err)
	}
	dir, err := os.MkdirTemp(base, "rowcache-")
	if err != nil {
		return "", nil, fmt.Errorf("create spill directory: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("remove spill directory")
		}
	}, nil
}

func applyTransforms(ctx context.Context, orig *rowcache.CacheWindow, spillDir string) (*rowcache.CacheWindow, error) {
	results := transform.NewResultCacheFromConfig(cfg.Transform)
	defer results.Close()

	b := transform.NewBuilder(orig,
		transform.WithConfig(cfg.Transform),
		transform.WithSpillDir(spillDir),
		transform.WithResultCache(results),
	)
	if where != "" {
		b.Where(types.RowFilterSpec{Expression: where})
	}
	spec, err := types.ParseSortSpec(sortSpec, missingLast)
	if err != nil {
		return nil, err
	}
	b.Sort(spec)
	if len(columns) > 0 {
		b.Filter(types.ColumnFilterSpec{Columns: columns})
	}
	exec, err := b.Build()
	if err != nil {
		return nil, err
	}

	return exec.Apply(ctx, func(fraction float64, message string) {
		log.WithField("progress", fmt.Sprintf("%.0f%%", fraction*100)).Debug(message)
	})
}

// printStats writes the cache metrics when --stats is set
func (s *session) printStats() error {
	if !showStats {
		return nil
	}
	log.WithFields(logrus.Fields(s.window.Stats().GetDetailedStats())).Debug("cache stats")
	if s.registry == nil {
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}
