// Copyright 2025 litrev Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"bufio"
	"io"
	"strings"

	"github.com/juju/errors"
)

// Escape text for csv.
func Escape(text string) string {
	// check if need escape
	if !strings.Contains(text, ",") &&
		!strings.Contains(text, "\"") &&
		!strings.Contains(text, "\n") &&
		!strings.Contains(text, "\r") {
		return text
	}
	// start to encode
	builder := strings.Builder{}
	builder.WriteRune('"')
	for _, c := range text {
		if c == '"' {
			builder.WriteString("\"\"")
		} else {
			builder.WriteRune(c)
		}
	}
	builder.WriteRune('"')
	return builder.String()
}

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		// read line
		lineStr := sc.Text()
		line := []rune(lineStr)
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if string(line[i]) == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	return sc.Err()
}

// WriteCSV serializes the table as header-row, named-column flat text.
func (t *Table) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, c := range t.Columns {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return errors.Trace(err)
			}
		}
		if _, err := bw.WriteString(Escape(c)); err != nil {
			return errors.Trace(err)
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return errors.Trace(err)
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				if _, err := bw.WriteString(","); err != nil {
					return errors.Trace(err)
				}
			}
			if _, err := bw.WriteString(Escape(v)); err != nil {
				return errors.Trace(err)
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(bw.Flush())
}

// ReadCSV parses header-row, named-column flat text into a table.
func ReadCSV(r io.Reader) (*Table, error) {
	var table *Table
	var readErr error
	sc := bufio.NewScanner(r)
	err := ReadLines(sc, ",", func(lineNumber int, fields []string) bool {
		if lineNumber == 0 {
			table = NewTable(fields...)
			return true
		}
		if readErr = table.Append(fields); readErr != nil {
			return false
		}
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if readErr != nil {
		return nil, errors.Trace(readErr)
	}
	if table == nil {
		return nil, errors.New("empty csv")
	}
	return table, nil
}
