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
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rulego/rowcache/types"
	"github.com/spf13/cast"
)

// encodeRow serializes a row as one JSON object. Column order is kept and
// the key is stored under types.RowKeyColumn.
func encodeRow(row *types.Row) ([]byte, error) {
	return json.Marshal(row.ToDict())
}

// inferSchema reads the member names of a JSON object in document order
func inferSchema(record []byte) (*types.Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(record))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var columns []types.Column
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		// skip the member value
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if name == types.RowKeyColumn {
			continue
		}
		columns = append(columns, types.Column{Name: name})
	}
	return types.NewSchema(columns...)
}

// decodeRow decodes one JSON object into a row of schema. Members that are
// not in the schema are ignored, absent columns are missing values. Values
// are converted to the column type; decodeAs overrides the type by name.
func decodeRow(record []byte, schema *types.Schema, pos int64, decodeAs map[string]types.ColumnType) (*types.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(record))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}

	key := RowKey(pos)
	if k, ok := fields[types.RowKeyColumn]; ok && k != nil {
		key = fmt.Sprint(k)
	}

	values := make([]interface{}, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		col := schema.Column(i)
		t := col.Type
		if override, ok := decodeAs[col.Name]; ok {
			t = override
		}
		v, err := decodeValue(fields[col.Name], t)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		values[i] = v
	}
	return types.NewRow(schema, key, values...)
}

// decodeValue converts a decoded JSON member to t. Untyped columns keep the
// normalized JSON value.
func decodeValue(v interface{}, t types.ColumnType) (interface{}, error) {
	v = normalizeJSON(v)
	if v == nil {
		return nil, nil
	}
	switch t {
	case types.TypeInt:
		return cast.ToInt64E(v)
	case types.TypeFloat:
		return cast.ToFloat64E(v)
	case types.TypeBool:
		return cast.ToBoolE(v)
	case types.TypeString:
		return cast.ToStringE(v)
	case types.TypeTime:
		return cast.ToTimeE(v)
	default:
		return v, nil
	}
}

// valueType reports the column type a JSON round trip must restore for v.
// Values without a lossless type report ok false.
func valueType(v interface{}) (types.ColumnType, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return types.TypeInt, true
	case float32, float64:
		return types.TypeFloat, true
	case bool:
		return types.TypeBool, true
	case string:
		return types.TypeString, true
	case time.Time:
		return types.TypeTime, true
	}
	return types.TypeAny, false
}

// normalizeJSON turns json.Number into int64 when integral, float64 otherwise
func normalizeJSON(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
