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

// Package metrics collects cache statistics and exports them to prometheus.
package metrics

import "sync/atomic"

// Statistics field constants
const (
	Hits        = "hits"
	Misses      = "misses"
	Rebuilds    = "rebuilds"
	Resets      = "resets"
	RowsFetched = "rows_fetched"
	Cancelled   = "cancelled"
	SourceErrs  = "source_errors"
	HitRate     = "hit_rate"
)

// StatsCollector counts cache activity. All methods are safe for concurrent
// use and a nil collector ignores updates.
type StatsCollector struct {
	hits        int64
	misses      int64
	rebuilds    int64
	resets      int64
	rowsFetched int64
	cancelled   int64
	sourceErrs  int64
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

func add(sc *StatsCollector, field *int64, delta int64) {
	if sc != nil {
		atomic.AddInt64(field, delta)
	}
}

func load(sc *StatsCollector, field *int64) int64 {
	if sc == nil {
		return 0
	}
	return atomic.LoadInt64(field)
}

// IncrementHit counts a request served from the buffer
func (sc *StatsCollector) IncrementHit() {
	if sc != nil {
		add(sc, &sc.hits, 1)
	}
}

// IncrementMiss counts a request that advanced the iterator
func (sc *StatsCollector) IncrementMiss() {
	if sc != nil {
		add(sc, &sc.misses, 1)
	}
}

// IncrementRebuild counts a backward seek that replayed the source
func (sc *StatsCollector) IncrementRebuild() {
	if sc != nil {
		add(sc, &sc.rebuilds, 1)
	}
}

// IncrementReset counts an explicit clear or resize
func (sc *StatsCollector) IncrementReset() {
	if sc != nil {
		add(sc, &sc.resets, 1)
	}
}

// AddRowsFetched counts rows read from the source
func (sc *StatsCollector) AddRowsFetched(n int64) {
	if sc != nil {
		add(sc, &sc.rowsFetched, n)
	}
}

// IncrementCancelled counts reads aborted by the caller
func (sc *StatsCollector) IncrementCancelled() {
	if sc != nil {
		add(sc, &sc.cancelled, 1)
	}
}

// IncrementSourceError counts failures raised by the source
func (sc *StatsCollector) IncrementSourceError() {
	if sc != nil {
		add(sc, &sc.sourceErrs, 1)
	}
}

func (sc *StatsCollector) GetHits() int64 {
	if sc == nil {
		return 0
	}
	return load(sc, &sc.hits)
}

func (sc *StatsCollector) GetMisses() int64 {
	if sc == nil {
		return 0
	}
	return load(sc, &sc.misses)
}

func (sc *StatsCollector) GetRebuilds() int64 {
	if sc == nil {
		return 0
	}
	return load(sc, &sc.rebuilds)
}

func (sc *StatsCollector) GetRowsFetched() int64 {
	if sc == nil {
		return 0
	}
	return load(sc, &sc.rowsFetched)
}

// Reset resets statistics information
func (sc *StatsCollector) Reset() {
	if sc == nil {
		return
	}
	for _, field := range []*int64{&sc.hits, &sc.misses, &sc.rebuilds, &sc.resets,
		&sc.rowsFetched, &sc.cancelled, &sc.sourceErrs} {
		atomic.StoreInt64(field, 0)
	}
}

// GetBasicStats returns all counters by name
func (sc *StatsCollector) GetBasicStats() map[string]int64 {
	if sc == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		Hits:        load(sc, &sc.hits),
		Misses:      load(sc, &sc.misses),
		Rebuilds:    load(sc, &sc.rebuilds),
		Resets:      load(sc, &sc.resets),
		RowsFetched: load(sc, &sc.rowsFetched),
		Cancelled:   load(sc, &sc.cancelled),
		SourceErrs:  load(sc, &sc.sourceErrs),
	}
}

// GetDetailedStats adds the hit rate in percent to the basic stats
func (sc *StatsCollector) GetDetailedStats() map[string]interface{} {
	basic := sc.GetBasicStats()
	hitRate := 0.0
	if total := basic[Hits] + basic[Misses]; total > 0 {
		hitRate = float64(basic[Hits]) / float64(total) * 100
	}
	out := make(map[string]interface{}, len(basic)+1)
	for k, v := range basic {
		out[k] = v
	}
	out[HitRate] = hitRate
	return out
}
