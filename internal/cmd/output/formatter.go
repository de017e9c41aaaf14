// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Align is the alignment of a table column.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

var twAlign = map[Align]tw.Align{
	AlignDefault: tw.Skip,
	AlignLeft:    tw.AlignLeft,
	AlignCenter:  tw.AlignCenter,
	AlignRight:   tw.AlignRight,
}

// Formatter writes data to w in one encoding.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(io.Writer, any) error

// Format calls f.
func (f FormatterFunc) Format(w io.Writer, data any) error { return f(w, data) }

// Tabular is a value with a hand-built table form. JSON and YAML render
// Value; tables render Table.
type Tabular interface {
	Table() Data
	Value() any
}

// Data is a table ready to render.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align
}

// NewFormatter returns the formatter for format; anything unknown renders tables.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	}
	return &TableFormatter{}
}

// ParseFormat validates a --format value. The empty string means auto-detect.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of: table, json, yaml", s)
}

// DetectFormat returns the explicit format, or table on a terminal and
// JSON when stdout is piped.
func DetectFormat(explicit string) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	if fd := os.Stdout.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}

func plain(data any) any {
	if t, ok := data.(Tabular); ok {
		return t.Value()
	}
	return data
}

// JSONFormatter writes indented JSON.
type JSONFormatter struct {
	Indent string
}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(plain(data))
}

// YAMLFormatter writes YAML keyed by the values' json tags.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	out, err := yaml.MarshalWithOptions(plain(data),
		yaml.Indent(2),
		yaml.IndentSequence(false),
		yaml.UseJSONMarshaler(),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// TableFormatter renders Data, Tabular values, structs and struct slices.
// Anything else is written as JSON.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case Data:
		return render(w, v)
	case Tabular:
		return render(w, v.Table())
	}
	if d, ok := reflectTable(data); ok {
		return render(w, d)
	}
	return (&JSONFormatter{Indent: "  "}).Format(w, data)
}

func render(w io.Writer, data Data) error {
	var cfg tablewriter.Config
	if len(data.ColumnAlignment) > 0 {
		per := make([]tw.Align, len(data.ColumnAlignment))
		for i, a := range data.ColumnAlignment {
			per[i] = twAlign[a]
		}
		cfg.Header.Alignment = tw.CellAlignment{PerColumn: per}
		cfg.Row.Alignment = tw.CellAlignment{PerColumn: per}
	}

	table := tablewriter.NewTable(w, tablewriter.WithConfig(cfg))
	if len(data.Headers) > 0 {
		table.Header(cells(data.Headers)...)
	}
	for _, row := range data.Rows {
		if err := table.Append(cells(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func cells(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// reflectTable lays out a struct as property/value rows and a struct slice
// as one row per element. Unexported fields are skipped.
func reflectTable(data any) (Data, bool) {
	v := reflect.ValueOf(data)
	switch {
	case v.Kind() == reflect.Struct:
		var d Data
		d.Headers = []string{"Property", "Value"}
		for _, i := range exported(v.Type()) {
			d.Rows = append(d.Rows, []string{headerName(v.Type().Field(i)), cell(v.Field(i))})
		}
		return d, true

	case v.Kind() == reflect.Slice && v.Len() > 0 && v.Index(0).Kind() == reflect.Struct:
		t := v.Index(0).Type()
		fields := exported(t)
		var d Data
		for _, i := range fields {
			d.Headers = append(d.Headers, headerName(t.Field(i)))
		}
		for n := 0; n < v.Len(); n++ {
			row := make([]string, 0, len(fields))
			for _, i := range fields {
				row = append(row, cell(v.Index(n).Field(i)))
			}
			d.Rows = append(d.Rows, row)
		}
		return d, true
	}
	return Data{}, false
}

func exported(t reflect.Type) []int {
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			idx = append(idx, i)
		}
	}
	return idx
}

func cell(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

// headerName titles a field's json name, or returns the Go name.
func headerName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
