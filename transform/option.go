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
	"time"

	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/source"
	"github.com/rulego/rowcache/types"
)

// Option configures an Executor
type Option func(*Executor)

// WithSorter replaces the default btree sorter
func WithSorter(s types.Sorter) Option {
	return func(e *Executor) {
		e.sorter = s
	}
}

// WithMaterializer sets where derived tables are written, memory by default
func WithMaterializer(m types.Materializer) Option {
	return func(e *Executor) {
		e.materializer = m
	}
}

// WithSpillDir writes derived tables as JSON lines files under dir
func WithSpillDir(dir string) Option {
	return func(e *Executor) {
		if dir != "" {
			e.materializer = source.JSONLMaterializer{Dir: dir}
		}
	}
}

// WithResultCache reuses materialized step results across executors
func WithResultCache(c *ResultCache) Option {
	return func(e *Executor) {
		e.results = c
	}
}

// WithTimeout bounds a single Apply, 0 disables the limit
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

func WithLogger(log logger.Logger) Option {
	return func(e *Executor) {
		e.logger = log
	}
}

// WithConfig applies spill directory and timeout. The result cache is owned
// by the caller, see NewResultCacheFromConfig.
func WithConfig(cfg types.TransformConfig) Option {
	return func(e *Executor) {
		WithSpillDir(cfg.SpillDir)(e)
		e.timeout = cfg.Timeout
	}
}
