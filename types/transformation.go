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
	"context"
	"fmt"
	"strings"
)

// TransformationKind tags the transformation variants
type TransformationKind string

const (
	KindSort         TransformationKind = "sort"
	KindColumnFilter TransformationKind = "filter"
	KindRowFilter    TransformationKind = "where"
)

// Transformation is a declarative step deriving a new table from an existing one.
// The implementations are SortSpec, ColumnFilterSpec and RowFilterSpec.
type Transformation interface {
	Kind() TransformationKind
	// String returns a stable descriptor of the step
	String() string
}

// SortColumn is one sort key
type SortColumn struct {
	Name       string `json:"name" yaml:"name"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// SortSpec orders rows by the given columns. RowKeyColumn sorts by row key.
type SortSpec struct {
	Columns []SortColumn `json:"columns" yaml:"columns"`
	// MissingLast places missing values after all defined values regardless
	// of the direction. Otherwise missing values compare as smallest.
	MissingLast bool `json:"missingLast,omitempty" yaml:"missingLast,omitempty"`
}

func (s SortSpec) Kind() TransformationKind { return KindSort }

// IsNatural reports whether the spec keeps the natural row order
func (s SortSpec) IsNatural() bool {
	return len(s.Columns) == 0
}

func (s SortSpec) String() string {
	parts := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		if col.Descending {
			parts[i] = col.Name + ":desc"
		} else {
			parts[i] = col.Name + ":asc"
		}
	}
	desc := "sort(" + strings.Join(parts, ",")
	if s.MissingLast {
		desc += ";missing-last"
	}
	return desc + ")"
}

// ParseSortSpec parses "a,b:desc" style sort specs
func ParseSortSpec(spec string, missingLast bool) (SortSpec, error) {
	out := SortSpec{MissingLast: missingLast}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return out, nil
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		name, dir, _ := strings.Cut(part, ":")
		if name == "" {
			return SortSpec{}, fmt.Errorf("invalid sort column %q", part)
		}
		col := SortColumn{Name: name}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			col.Descending = true
		default:
			return SortSpec{}, fmt.Errorf("invalid sort direction %q for column %s", dir, name)
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

// ColumnFilterSpec narrows the included columns. It never changes the row count.
type ColumnFilterSpec struct {
	Columns []string `json:"columns" yaml:"columns"`
}

func (s ColumnFilterSpec) Kind() TransformationKind { return KindColumnFilter }

func (s ColumnFilterSpec) String() string {
	return "filter(" + strings.Join(s.Columns, ",") + ")"
}

// RowFilterSpec keeps the rows matching a boolean expression over the row's columns
type RowFilterSpec struct {
	Expression string `json:"expression" yaml:"expression"`
}

func (s RowFilterSpec) Kind() TransformationKind { return KindRowFilter }

func (s RowFilterSpec) String() string {
	return "where(" + s.Expression + ")"
}

// SortRequest is handed to a Sorter
type SortRequest struct {
	Source RowSource
	// RowCountHint is the best known row count, or -1 when unknown
	RowCountHint int64
	Columns      []SortColumn
	MissingLast  bool
	Progress     ProgressFunc
}

// Sorter sorts a whole table and returns the sorted table as a new source
type Sorter interface {
	Sort(ctx context.Context, req SortRequest) (RowSource, error)
}
