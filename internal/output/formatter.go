// Package output formats command results as tables, JSON or YAML.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/presim/internal/render"
)

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Tabular is implemented by documents that know their own table layout.
type Tabular interface {
	TableLines() []string
}

// Formatter renders a value in one output format.
type Formatter interface {
	Format(data any) (string, error)
}

// ParseFormat validates a format name. Empty means table.
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", name)
	}
}

// NewFormatter returns a Formatter for the given format. Unknown names fall back to table.
func NewFormatter(format string) Formatter {
	switch strings.ToLower(format) {
	case FormatJSON:
		return JSONFormatter{}
	case FormatYAML:
		return YAMLFormatter{}
	default:
		return TableFormatter{}
	}
}

// Write formats data and writes it to w. Table output written to a terminal
// is clipped to the terminal width.
func Write(w io.Writer, format string, data any) error {
	formatter := NewFormatter(format)
	text, err := formatter.Format(data)
	if err != nil {
		return err
	}
	if _, ok := formatter.(TableFormatter); ok {
		if width, isTerm := render.TerminalWidth(w); isTerm {
			text = clipLines(text, width)
		}
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// TableFormatter renders aligned text. Tabular values supply their own lines;
// slices of structs become one row per element with upper-cased field names as headers.
type TableFormatter struct{}

// Format implements Formatter.
func (TableFormatter) Format(data any) (string, error) {
	if t, ok := data.(Tabular); ok {
		return joinLines(t.TableLines()), nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return "No resources found.\n", nil
		}
		elem := indirect(v.Index(0))
		if elem.Kind() != reflect.Struct {
			lines := make([]string, v.Len())
			for i := range lines {
				lines[i] = fmt.Sprintf("%v", v.Index(i).Interface())
			}
			return joinLines(lines), nil
		}
		t := elem.Type()
		headers := make([]string, t.NumField())
		for i := range headers {
			headers[i] = strings.ToUpper(t.Field(i).Name)
		}
		rows := make([][]string, v.Len())
		for i := range rows {
			row := indirect(v.Index(i))
			vals := make([]string, row.NumField())
			for j := range vals {
				vals[j] = fmt.Sprintf("%v", row.Field(j).Interface())
			}
			rows[i] = vals
		}
		return joinLines(render.Table(headers, rows, nil)), nil
	case reflect.Struct:
		t := v.Type()
		rows := make([][]string, t.NumField())
		for i := range rows {
			rows[i] = []string{t.Field(i).Name + ":", fmt.Sprintf("%v", v.Field(i).Interface())}
		}
		return joinLines(render.Table(nil, rows, nil)), nil
	default:
		return fmt.Sprintln(data), nil
	}
}

// JSONFormatter renders indented JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (JSONFormatter) Format(data any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}
	return string(b) + "\n", nil
}

// YAMLFormatter renders YAML with two-space indentation.
type YAMLFormatter struct{}

// Format implements Formatter.
func (YAMLFormatter) Format(data any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("failed to format YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to format YAML: %w", err)
	}
	return buf.String(), nil
}

func indirect(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

func clipLines(text string, width int) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		if runewidth.StringWidth(line) > width {
			lines[i] = runewidth.Truncate(line, width, "…")
		}
	}
	return joinLines(lines)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
