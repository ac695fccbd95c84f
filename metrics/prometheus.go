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

package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a StatsCollector as prometheus counters. Every cache
// registers under its own "table" label.
type Collector struct {
	stats *StatsCollector
	descs map[string]*prometheus.Desc
}

var counterHelp = map[string]string{
	Hits:        "Row requests served from the ring buffer",
	Misses:      "Row requests that advanced the source iterator",
	Rebuilds:    "Backward seeks that re-opened the source iterator",
	Resets:      "Explicit cache clears and resizes",
	RowsFetched: "Rows read from the source iterator",
	Cancelled:   "Row requests cancelled by the caller",
	SourceErrs:  "Errors raised by the row source",
}

// NewPrometheusCollector creates a collector. namespace defaults to "rowcache".
func NewPrometheusCollector(stats *StatsCollector, namespace, table string) *Collector {
	if namespace == "" {
		namespace = "rowcache"
	}
	c := &Collector{stats: stats, descs: make(map[string]*prometheus.Desc, len(counterHelp))}
	for name, help := range counterHelp {
		c.descs[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", name+"_total"),
			help, nil, prometheus.Labels{"table": table})
	}
	return c
}

func (c *Collector) sortedNames() []string {
	names := make([]string, 0, len(c.descs))
	for name := range c.descs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, name := range c.sortedNames() {
		ch <- c.descs[name]
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats.GetBasicStats()
	for _, name := range c.sortedNames() {
		ch <- prometheus.MustNewConstMetric(c.descs[name],
			prometheus.CounterValue, float64(stats[name]))
	}
}

// Register adds a collector for stats to reg
func Register(reg prometheus.Registerer, stats *StatsCollector, namespace, table string) (*Collector, error) {
	c := NewPrometheusCollector(stats, namespace, table)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
