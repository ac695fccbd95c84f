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

package condition

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/rowcache/types"
)

// KeyVariable exposes the row key to expressions
const KeyVariable = "_key"

type Condition interface {
	Evaluate(env interface{}) bool
}

// RowCondition evaluates a boolean expression against table rows
type RowCondition interface {
	Condition
	Match(row *types.Row) bool
	Expression() string
}

type ExprCondition struct {
	program    *vm.Program
	expression string
}

func NewExprCondition(expression string) (*ExprCondition, error) {
	options := []expr.Option{
		expr.Function("like_match", func(params ...any) (any, error) {
			if len(params) != 2 {
				return false, fmt.Errorf("like_match function requires 2 parameters")
			}
			text, ok1 := params[0].(string)
			pattern, ok2 := params[1].(string)
			if !ok1 || !ok2 {
				return false, fmt.Errorf("like_match function requires string parameters")
			}
			return likeMatch(text, pattern), nil
		}),
		expr.Function("is_null", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("is_null function requires 1 parameter")
			}
			return params[0] == nil, nil
		}),
		expr.Function("is_not_null", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("is_not_null function requires 1 parameter")
			}
			return params[0] != nil, nil
		}),
		// 缺失的列按 nil 处理
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return &ExprCondition{program: program, expression: expression}, nil
}

// Evaluate runs the expression. Runtime errors count as false.
func (ec *ExprCondition) Evaluate(env interface{}) bool {
	result, err := expr.Run(ec.program, env)
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

// Match evaluates the expression with the row's cells as variables and the
// row key as _key.
func (ec *ExprCondition) Match(row *types.Row) bool {
	return ec.Evaluate(RowEnv(row))
}

func (ec *ExprCondition) Expression() string {
	return ec.expression
}

// RowEnv builds the expression environment of a row. A column named _key
// shadows the row key.
func RowEnv(row *types.Row) map[string]interface{} {
	env := row.ToMap()
	if _, ok := env[KeyVariable]; !ok {
		env[KeyVariable] = row.Key
	}
	return env
}

// likeMatch 实现LIKE模式匹配，%匹配任意字符序列，_匹配单个字符
func likeMatch(text, pattern string) bool {
	t, p := []rune(text), []rune(pattern)
	// 回溯位置
	star, mark := -1, 0
	i, j := 0, 0
	for i < len(t) {
		switch {
		case j < len(p) && p[j] == '%':
			star, mark = j, i
			j++
		case j < len(p) && (p[j] == '_' || p[j] == t[i]):
			i++
			j++
		case star >= 0:
			mark++
			i, j = mark, star+1
		default:
			return false
		}
	}
	for j < len(p) && p[j] == '%' {
		j++
	}
	return j == len(p)
}
