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

/*
Package types provides the core type definitions shared by the cache window,
the row sources and the transformation executor.

# Tables

A table is a RowSource: an immutable, forward-only sequence of rows with a
Schema. Sources may know their size up front (KnownSize) or only discover it
when an iterator reaches the end.

	schema := types.MustSchema("name", "price")
	row := types.MustRow(schema, "r0", "apple", 1.5)
	v, err := row.Get("price")          // 1.5
	_, err = row.Get(types.RowKeyColumn) // "r0"

Rows carry only the columns that were materialized. Reading a column that was
projected away returns ErrColumnNotIncluded.

# Transformations

Transformations are declarative steps applied to a whole table:

	types.SortSpec{Columns: []types.SortColumn{{Name: "price", Descending: true}}, MissingLast: true}
	types.ColumnFilterSpec{Columns: []string{"name"}}
	types.RowFilterSpec{Expression: "price > 10"}

ParseSortSpec accepts the "price:desc,name" shorthand used on the command line.

# Configuration

CacheConfig is loaded from YAML with defaults filled in by struct tags:

	cfg, err := types.LoadConfig("rowcache.yaml")

# Errors

	ErrOutOfRange        // bad index, span or row past the final count
	ErrUnknownCount      // the row count is not final yet
	ErrCancelled         // the context was cancelled, see CancelledError
	ErrColumnNotIncluded // the column was projected away
	ErrUnknownColumn     // the column is not in the schema
	ErrBuilderFrozen     // transformation builder used after Build
	ErrClosed            // cache window closed

IsRecoverable reports whether the same window may be used again after an error.
*/
package types
