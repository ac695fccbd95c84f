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

package sorter

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rulego/rowcache/types"
	"github.com/spf13/cast"
)

// 无类型列的值种类顺序
const (
	kindBool = iota
	kindNumber
	kindTime
	kindString
	kindOther
)

// Compare orders two defined values of an untyped column and returns -1, 0
// or 1. Values rank by kind first: bools, then numbers, then times, then
// strings, then anything else. Inside a kind bools order false before true,
// numbers numerically (NaN first), times chronologically and strings as text.
// Strings are never parsed, so "10" sorts before "9".
//
// The result is a total order over any mix of values.
func Compare(a, b interface{}) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case kindBool:
		return compareBools(a.(bool), b.(bool))
	case kindNumber:
		na, _ := toNumber(a)
		nb, _ := toNumber(b)
		return compareNumbers(na, nb)
	case kindTime:
		return a.(time.Time).Compare(b.(time.Time))
	case kindString:
		return strings.Compare(a.(string), b.(string))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// CompareTyped orders two defined values of a column declared with type t.
// String columns compare the text form of every value. Int and float columns
// compare numerically, time columns chronologically and bool columns false
// before true; numeric, time and bool strings are parsed first. Values that
// do not convert to the column type sort after those that do, ordered among
// themselves by Compare.
func CompareTyped(a, b interface{}, t types.ColumnType) int {
	switch t {
	case types.TypeString:
		return strings.Compare(asString(a), asString(b))
	case types.TypeInt, types.TypeFloat:
		return compareConverted(a, b, parseNumber, compareNumbers)
	case types.TypeTime:
		return compareConverted(a, b, parseTime, time.Time.Compare)
	case types.TypeBool:
		return compareConverted(a, b, parseBool, compareBools)
	default:
		return Compare(a, b)
	}
}

func compareConverted[T any](a, b interface{}, conv func(interface{}) (T, bool), compare func(T, T) int) int {
	x, okX := conv(a)
	y, okY := conv(b)
	switch {
	case okX && okY:
		return compare(x, y)
	case okX:
		return -1
	case okY:
		return 1
	default:
		return Compare(a, b)
	}
}

func kindOf(v interface{}) int {
	switch v.(type) {
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	case string:
		return kindString
	}
	if _, ok := toNumber(v); ok {
		return kindNumber
	}
	return kindOther
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// number keeps integers exact; isInt selects i or f
type number struct {
	i     int64
	f     float64
	isInt bool
}

func toNumber(v interface{}) (number, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return number{i: cast.ToInt64(x), isInt: true}, true
	case uint, uint64:
		u := cast.ToUint64(x)
		if u <= math.MaxInt64 {
			return number{i: int64(u), isInt: true}, true
		}
		return number{f: float64(u)}, true
	case float32, float64:
		return number{f: cast.ToFloat64(x)}, true
	}
	return number{}, false
}

func compareNumbers(a, b number) int {
	switch {
	case a.isInt && b.isInt:
		return cmp.Compare(a.i, b.i)
	case a.isInt:
		return compareIntFloat(a.i, b.f)
	case b.isInt:
		return -compareIntFloat(b.i, a.f)
	default:
		// cmp.Compare puts NaN first
		return cmp.Compare(a.f, b.f)
	}
}

// compareIntFloat compares without rounding i to float64
func compareIntFloat(i int64, f float64) int {
	const twoTo63 = 9223372036854775808.0
	switch {
	case math.IsNaN(f):
		return 1
	case f >= twoTo63:
		return -1
	case f < -twoTo63:
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	switch {
	case f > t:
		return -1
	case f < t:
		return 1
	default:
		return 0
	}
}

func parseNumber(v interface{}) (number, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return number{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return number{}, false
	}
	// base 10 only, "010" is ten
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i, isInt: true}, true
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return number{}, false
	}
	return number{f: f}, true
}

func parseTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := cast.ToTimeE(x)
		return t, err == nil
	}
	return time.Time{}, false
}

func parseBool(v interface{}) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := cast.ToBoolE(x)
		return b, err == nil
	}
	return false, false
}

func asString(v interface{}) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// RowComparator orders rows by a list of sort columns with a missing value policy
type RowComparator struct {
	columns     []types.SortColumn
	colTypes    []types.ColumnType
	missingLast bool
}

// NewRowComparator validates the sort columns against schema. Each column
// compares by its declared type; row keys compare as text.
func NewRowComparator(schema *types.Schema, columns []types.SortColumn, missingLast bool) (*RowComparator, error) {
	colTypes := make([]types.ColumnType, len(columns))
	for i, col := range columns {
		if col.Name == types.RowKeyColumn {
			colTypes[i] = types.TypeString
			continue
		}
		idx := schema.IndexOf(col.Name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: sort column %s", types.ErrUnknownColumn, col.Name)
		}
		colTypes[i] = schema.Column(idx).Type
	}
	return &RowComparator{columns: columns, colTypes: colTypes, missingLast: missingLast}, nil
}

// Keys extracts the sort key values of a row
func (c *RowComparator) Keys(row *types.Row) ([]interface{}, error) {
	keys := make([]interface{}, len(c.columns))
	for i, col := range c.columns {
		v, err := row.Get(col.Name)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

// CompareKeys compares two key lists produced by Keys
func (c *RowComparator) CompareKeys(a, b []interface{}) int {
	for i, col := range c.columns {
		x, y := a[i], b[i]
		var r int
		switch {
		case x == nil && y == nil:
			r = 0
		case x == nil || y == nil:
			if c.missingLast {
				// independent of the direction
				if x == nil {
					return 1
				}
				return -1
			}
			if x == nil {
				r = -1
			} else {
				r = 1
			}
		default:
			r = CompareTyped(x, y, c.colTypes[i])
		}
		if col.Descending {
			r = -r
		}
		if r != 0 {
			return r
		}
	}
	return 0
}
