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
	"io"
	"os"

	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/metrics"
	"github.com/rulego/rowcache/types"
)

// Option 表示对缓存窗口默认行为的修改配置。
type Option func(*CacheWindow)

// WithCacheSize 设置环形缓冲区容量，默认500。
// 容量小于 2*LookAhead 时会被提升到 2*LookAhead。
//
// 示例:
//
//	w, err := rowcache.New(src, rowcache.WithCacheSize(2000))
func WithCacheSize(n int) Option {
	return func(w *CacheWindow) {
		w.cacheSize = n
	}
}

// WithLookAhead 设置每次请求额外预读的行数，默认50。
func WithLookAhead(n int) Option {
	return func(w *CacheWindow) {
		w.lookAhead = n
	}
}

// WithIncludedColumns 只物化指定的列，不传参数表示全部列。
// 列名必须存在于数据源的 schema 中，否则 New 返回 ErrUnknownColumn。
//
// 示例:
//
//	w, err := rowcache.New(src, rowcache.WithIncludedColumns("name", "price"))
func WithIncludedColumns(columns ...string) Option {
	return func(w *CacheWindow) {
		w.included = columns
	}
}

// WithLogger 设置自定义日志记录器，默认使用全局日志记录器。
func WithLogger(log logger.Logger) Option {
	return func(w *CacheWindow) {
		w.logger = log
	}
}

// WithLogOutput 使用指定的输出和级别创建日志记录器
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(w *CacheWindow) {
		w.logger = logger.NewLogger(level, output)
	}
}

// WithDiscardLog 禁用此窗口的日志输出。
func WithDiscardLog() Option {
	return func(w *CacheWindow) {
		w.logger = logger.NewDiscardLogger()
	}
}

// WithMetrics 使用共享的统计收集器，便于多个窗口汇总到同一个 prometheus collector。
func WithMetrics(stats *metrics.StatsCollector) Option {
	return func(w *CacheWindow) {
		w.stats = stats
	}
}

// WithConfig 应用配置文件中的容量、预读行数、列投影和日志级别。
//
// 示例:
//
//	cfg, err := types.LoadConfig("rowcache.yaml")
//	w, err := rowcache.New(src, rowcache.WithConfig(*cfg))
func WithConfig(cfg types.CacheConfig) Option {
	return func(w *CacheWindow) {
		if cfg.CacheSize > 0 {
			w.cacheSize = cfg.CacheSize
		}
		if cfg.LookAhead >= 0 {
			w.lookAhead = cfg.LookAhead
		}
		if cfg.IncludedColumns != nil {
			w.included = cfg.IncludedColumns
		}
		if cfg.LogLevel != "" && w.logger == nil {
			w.logger = logger.NewLogger(logger.ParseLevel(cfg.LogLevel), os.Stderr)
		}
	}
}

func withTransformationLog(log []types.Transformation) Option {
	return func(w *CacheWindow) {
		w.log = log
	}
}
