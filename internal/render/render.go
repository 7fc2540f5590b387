// Package render prints schemas, collection lists and stream summaries for
// the command line, as aligned tables or as JSON/YAML documents.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/gookit/color"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json and yaml (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Document writes v as indented JSON or as YAML. YAML is produced from the
// JSON encoding so both formats carry the same keys.
func Document(w io.Writer, format Format, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if format == FormatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to convert output to YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// Printer writes human-readable output, optionally colored.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer over w.
func NewPrinter(w io.Writer, colored bool) *Printer {
	return &Printer{w: w, color: colored}
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.color || s == "" {
		return s
	}
	return c.Render(s)
}

// Header prints a boxed title.
func (p *Printer) Header(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := len(title) + 4
	fmt.Fprintln(p.w, strings.Repeat("=", width))
	fmt.Fprintf(p.w, "  %s\n", p.paint(color.Bold, title))
	fmt.Fprintln(p.w, strings.Repeat("=", width))
}

// Section prints a section header.
func (p *Printer) Section(title string) {
	fmt.Fprintf(p.w, "[%s]\n", p.paint(color.Bold, title))
	fmt.Fprintln(p.w, strings.Repeat("-", len(title)+2))
}

// Collections prints one collection name per line.
func (p *Printer) Collections(database string, names []string) {
	p.Header("Collections in %s", database)
	if len(names) == 0 {
		fmt.Fprintln(p.w, p.paint(color.Gray, "  (none)"))
		return
	}
	for i, name := range names {
		fmt.Fprintf(p.w, "  [%d] %s\n", i+1, name)
	}
}
