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

package types

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultCacheSize is the default ring buffer capacity
	DefaultCacheSize = 500
	// DefaultLookAhead is the default number of rows read past a request
	DefaultLookAhead = 50
)

// CacheConfig holds the tunables of a cache window and its transformations
type CacheConfig struct {
	// CacheSize 环形缓冲区容量
	CacheSize int `yaml:"cacheSize" json:"cacheSize" default:"500"`
	// LookAhead 每次请求额外预读的行数
	LookAhead int `yaml:"lookAhead" json:"lookAhead" default:"50"`
	// IncludedColumns restricts the materialized columns, nil means all
	IncludedColumns []string `yaml:"includedColumns,omitempty" json:"includedColumns,omitempty"`

	Transform TransformConfig `yaml:"transform" json:"transform"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`

	LogLevel string `yaml:"logLevel" json:"logLevel" default:"info"`
}

// TransformConfig controls how derived tables are materialized
type TransformConfig struct {
	// SpillDir 派生表写入的目录，为空时保存在内存中
	SpillDir string `yaml:"spillDir" json:"spillDir"`
	// ResultCacheSize 缓存的派生表数量，0表示不缓存
	ResultCacheSize int           `yaml:"resultCacheSize" json:"resultCacheSize" default:"16"`
	ResultCacheTTL  time.Duration `yaml:"resultCacheTTL" json:"resultCacheTTL" default:"10m"`
	// Timeout bounds a single Apply, 0 means no limit
	Timeout time.Duration `yaml:"timeout" json:"timeout" default:"10m"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" default:"true"`
	Namespace string `yaml:"namespace" json:"namespace" default:"rowcache"`
}

// DefaultCacheConfig returns the configuration with all defaults applied
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		CacheSize: DefaultCacheSize,
		LookAhead: DefaultLookAhead,
		Transform: TransformConfig{
			ResultCacheSize: 16,
			ResultCacheTTL:  10 * time.Minute,
			Timeout:         10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "rowcache",
		},
		LogLevel: "info",
	}
}

// Validate checks the sizes
func (c *CacheConfig) Validate() error {
	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}
	if c.LookAhead < 0 {
		return fmt.Errorf("lookAhead must not be negative, got %d", c.LookAhead)
	}
	if c.Transform.ResultCacheSize < 0 {
		return fmt.Errorf("transform.resultCacheSize must not be negative, got %d",
			c.Transform.ResultCacheSize)
	}
	return nil
}

// LoadConfig reads a YAML configuration file on top of the defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*CacheConfig, error) {
	config := &CacheConfig{}
	if err := defaults.Set(config); err != nil {
		return nil, err
	}
	if path == "" {
		return config, nil
	}

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}
