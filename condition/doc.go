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
Package condition evaluates boolean row predicates for the row filter step.

Expressions are compiled once with the expr-lang library and evaluated for
every row. The row's cells are variables named after their columns, the row
key is available as _key. Columns missing from the row evaluate to nil and
runtime errors make the predicate false.

# Custom Functions

	like_match(text, pattern) - SQL LIKE with % and _ wildcards
	is_null(value)            - value is missing
	is_not_null(value)        - value is present

# Usage Examples

	cond, err := condition.NewExprCondition("price > 10 && like_match(name, 'a%')")
	if err != nil {
		log.Fatal(err)
	}
	if cond.Match(row) {
		// keep the row
	}
*/
package condition
