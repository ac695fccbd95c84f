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

package source

import (
	"context"

	"github.com/rulego/rowcache/types"
)

// Project restricts src to the included columns. A nil list returns src.
func Project(src types.RowSource, included []string) (types.RowSource, error) {
	if included == nil {
		return src, nil
	}
	schema, err := src.Schema().Project(included)
	if err != nil {
		return nil, err
	}
	return &projectedSource{RowSource: src, schema: schema}, nil
}

type projectedSource struct {
	types.RowSource
	schema *types.Schema
}

func (p *projectedSource) Schema() *types.Schema {
	return p.schema
}

func (p *projectedSource) OpenIterator(ctx context.Context, included []string) (types.RowIterator, error) {
	narrowed, err := p.schema.Project(included)
	if err != nil {
		return nil, err
	}
	return p.RowSource.OpenIterator(ctx, narrowed.Names())
}
