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

// Package transform derives new tables from a cache window. A Builder
// collects sort and filter steps, Build freezes them into an Executor and
// Apply materializes the result as an independent CacheWindow.
package transform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rulego/rowcache"
	"github.com/rulego/rowcache/types"
)

// Builder accumulates transformation steps. It is safe for concurrent use.
type Builder struct {
	mu     sync.Mutex
	orig   *rowcache.CacheWindow
	opts   []Option
	steps  []types.Transformation
	frozen bool
	err    error
}

// NewBuilder starts a pipeline on orig
func NewBuilder(orig *rowcache.CacheWindow, opts ...Option) *Builder {
	return &Builder{orig: orig, opts: opts}
}

// Sort appends a sort step. A spec without columns keeps the natural order.
func (b *Builder) Sort(spec types.SortSpec) *Builder {
	return b.Add(spec)
}

// Filter appends a column filter step
func (b *Builder) Filter(spec types.ColumnFilterSpec) *Builder {
	return b.Add(spec)
}

// Where appends a row filter step
func (b *Builder) Where(spec types.RowFilterSpec) *Builder {
	return b.Add(spec)
}

// Add appends any supported step. Steps added after Build are rejected and
// the error is reported by Err.
func (b *Builder) Add(step types.Transformation) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		b.err = errors.Join(b.err, fmt.Errorf("%w: %s", types.ErrBuilderFrozen, step))
		return b
	}
	switch step.(type) {
	case types.SortSpec, types.ColumnFilterSpec, types.RowFilterSpec:
		b.steps = append(b.steps, step)
	default:
		b.err = errors.Join(b.err, fmt.Errorf("unsupported transformation %T", step))
	}
	return b
}

// Steps returns a copy of the accumulated steps
func (b *Builder) Steps() []types.Transformation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Transformation(nil), b.steps...)
}

// Err returns the errors recorded while adding steps
func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Build freezes the builder and returns the executor. Building twice fails
// with ErrBuilderFrozen.
func (b *Builder) Build() (*Executor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, types.ErrBuilderFrozen
	}
	b.frozen = true
	if b.err != nil {
		return nil, b.err
	}
	if b.orig == nil {
		return nil, errors.New("transform: nil cache window")
	}
	return newExecutor(b.orig, append([]types.Transformation(nil), b.steps...), b.opts), nil
}
