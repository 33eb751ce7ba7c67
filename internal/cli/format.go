package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

// headerStyle renders a table's header row; Render is a no-op when color
// is disabled (lipgloss respects NO_COLOR on its own, but --no-color is an
// explicit CLI flag independent of the environment, so it is threaded
// through explicitly rather than relied on implicitly).
var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// writeJSON renders v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable renders a slice of structs as a tab-aligned table using each
// field's `col` struct tag as its header. Grounded on the teacher's
// internal/cli/helpers.TableFormatter, extended with lipgloss header
// styling honoring noColor.
func writeTable(w io.Writer, data interface{}, noColor bool) error {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return fmt.Errorf("writeTable: data must be a slice")
	}
	if val.Len() == 0 {
		fmt.Fprintln(w, "(no events)")
		return nil
	}

	elemType := val.Index(0).Type()
	headers := tableHeaders(elemType)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	headerLine := strings.Join(headers, "\t")
	if !noColor {
		headerLine = headerStyle.Render(headerLine)
	}
	if _, err := fmt.Fprintln(tw, headerLine); err != nil {
		return err
	}
	for i := 0; i < val.Len(); i++ {
		if _, err := fmt.Fprintln(tw, strings.Join(tableRow(val.Index(i)), "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func tableHeaders(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var headers []string
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("col"); tag != "" {
			headers = append(headers, tag)
		}
	}
	return headers
}

func tableRow(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	var row []string
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("col") != "" {
			row = append(row, fmt.Sprintf("%v", v.Field(i).Interface()))
		}
	}
	return row
}
