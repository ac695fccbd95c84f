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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Velocidex/ttlcache/v2"
	"github.com/rulego/rowcache/types"
)

// ResultCache memoizes materialized step results keyed by the input source
// and the step descriptor. Entries expire after the TTL; the least recently
// used entry is evicted when the size limit is reached.
type ResultCache struct {
	lru *ttlcache.Cache
}

// NewResultCache creates a cache of at most size entries
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	c := &ResultCache{lru: ttlcache.NewCache()}
	if size > 0 {
		c.lru.SetCacheSizeLimit(size)
	}
	if ttl > 0 {
		_ = c.lru.SetTTL(ttl)
	}
	return c
}

// NewResultCacheFromConfig returns nil when caching is disabled
func NewResultCacheFromConfig(cfg types.TransformConfig) *ResultCache {
	if cfg.ResultCacheSize <= 0 {
		return nil
	}
	return NewResultCache(cfg.ResultCacheSize, cfg.ResultCacheTTL)
}

// cachedResult holds its input so the input's address cannot be reused by
// another source while the entry is alive.
type cachedResult struct {
	input    types.RowSource
	src      types.RowSource
	rowCount int64
}

// get returns the entry stored for key only when it was computed from input
func (c *ResultCache) get(key string, input types.RowSource) (cachedResult, bool) {
	if c == nil || key == "" {
		return cachedResult{}, false
	}
	v, err := c.lru.Get(key)
	if err != nil {
		return cachedResult{}, false
	}
	res, ok := v.(cachedResult)
	if !ok || res.input != input {
		return cachedResult{}, false
	}
	return res, true
}

func (c *ResultCache) put(key string, res cachedResult) {
	if c == nil || key == "" {
		return
	}
	_ = c.lru.Set(key, res)
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.lru.GetKeys())
}

// Purge drops all entries
func (c *ResultCache) Purge() error {
	if c == nil {
		return nil
	}
	return c.lru.Purge()
}

func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.lru.Close()
}

// resultKey identifies a step applied to a source. Sources that are not
// pointers have no stable identity and are never cached.
func resultKey(src types.RowSource, included []string, step types.Transformation) string {
	if src == nil || reflect.ValueOf(src).Kind() != reflect.Ptr {
		return ""
	}
	cols := "*"
	if included != nil {
		cols = "[" + strings.Join(included, ",") + "]"
	}
	return fmt.Sprintf("%T@%p|%s|%s", src, src, cols, step)
}
