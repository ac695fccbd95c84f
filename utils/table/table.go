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

package table

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rulego/rowcache/types"
)

// KeyHeader is the header of the row key column
const KeyHeader = "key"

// FormatValue renders a cell, missing values are empty
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// PrintRows writes rows as an ASCII table with the row key as first column.
// Columns follow the schema order; footer is appended below the table when
// not empty.
func PrintRows(w io.Writer, schema *types.Schema, rows []*types.Row, footer string) error {
	columns := append([]string{KeyHeader}, schema.Names()...)
	cells := make([][]string, len(rows))
	for r, row := range rows {
		line := make([]string, len(columns))
		line[0] = row.Key
		for i, name := range columns[1:] {
			v, err := row.Get(name)
			if err != nil {
				return err
			}
			line[i+1] = FormatValue(v)
		}
		cells[r] = line
	}

	// Calculate maximum width for each column
	colWidths := make([]int, len(columns))
	for i, col := range columns {
		colWidths[i] = utf8.RuneCountInString(col)
		for _, line := range cells {
			if n := utf8.RuneCountInString(line[i]); n > colWidths[i] {
				colWidths[i] = n
			}
		}
		// Minimum width is 4
		if colWidths[i] < 4 {
			colWidths[i] = 4
		}
	}

	var b strings.Builder
	writeBorder(&b, colWidths)
	writeLine(&b, columns, colWidths)
	writeBorder(&b, colWidths)
	for _, line := range cells {
		writeLine(&b, line, colWidths)
	}
	writeBorder(&b, colWidths)
	if footer != "" {
		b.WriteString(footer)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeLine(b *strings.Builder, values []string, widths []int) {
	b.WriteByte('|')
	for i, v := range values {
		b.WriteByte(' ')
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(v)))
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}

// writeBorder writes a +----+ line
func writeBorder(b *strings.Builder, widths []int) {
	b.WriteByte('+')
	for _, width := range widths {
		b.WriteString(strings.Repeat("-", width+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
}
