package render

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/IngaleChinmay04/MongoNexus/internal/schema"
	"github.com/IngaleChinmay04/MongoNexus/internal/wire"
)

// maxCellWidth truncates long cells such as examples.
const maxCellWidth = 40

var typeColors = map[schema.TypeTag]color.Color{
	schema.TypeString:   color.Green,
	schema.TypeInteger:  color.Cyan,
	schema.TypeFloat:    color.Cyan,
	schema.TypeBoolean:  color.Yellow,
	schema.TypeDate:     color.Magenta,
	schema.TypeObjectID: color.Blue,
	schema.TypeObject:   color.Blue,
	schema.TypeArray:    color.Blue,
	schema.TypeMixed:    color.Red,
	schema.TypeNull:     color.Gray,
}

var schemaColumns = []string{"FIELD", "TYPE", "PRESENT", "NULLS", "NOTES", "EXAMPLES"}

// Schema prints one row per field path, nested paths indented under their
// parent.
func (p *Printer) Schema(collection string, s *schema.AggregateSchema) {
	p.Header("%s (%d documents sampled)", collection, s.TotalSampled)

	rows := s.Flatten()
	cells := make([][]string, 0, len(rows))
	tags := make([]schema.TypeTag, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, schemaRow(r))
		tags = append(tags, r.Stats.Type())
	}
	if len(cells) == 0 {
		fmt.Fprintln(p.w, p.paint(color.Gray, "  (no fields)"))
		return
	}

	widths := columnWidths(schemaColumns, cells)
	p.writeRow(schemaColumns, widths, func(_ int, s string) string { return p.paint(color.Bold, s) })
	for i, row := range cells {
		tag := tags[i]
		p.writeRow(row, widths, func(col int, s string) string {
			if col == 1 {
				return p.paint(typeColors[tag], s)
			}
			return s
		})
	}
}

func schemaRow(r schema.Row) []string {
	f := r.Stats
	name := r.Path
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	typ := f.Type().String()
	if f.Mixed() {
		typ = "mixed(" + strings.Join(f.Types.Without(schema.TypeNull).Names(), "|") + ")"
	}

	present := fmt.Sprintf("%d/%d", f.Count, f.TotalSampled)
	if f.Optional() {
		present += " optional"
	}

	nulls := ""
	if f.NullCount > 0 {
		nulls = fmt.Sprintf("%d", f.NullCount)
	}

	examples := make([]string, 0, len(f.Examples))
	for _, ex := range f.Examples {
		examples = append(examples, exampleText(ex))
	}

	return []string{
		strings.Repeat("  ", r.Depth) + name,
		typ,
		present,
		nulls,
		truncate(f.Strings.Summary()),
		truncate(strings.Join(examples, ", ")),
	}
}

func exampleText(v interface{}) string {
	switch plain := wire.Plain(v).(type) {
	case string:
		return fmt.Sprintf("%q", plain)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", plain)
	}
}

func truncate(s string) string {
	return runewidth.Truncate(s, maxCellWidth, "…")
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// writeRow pads cells by display width before styling them, so escape
// codes never affect alignment.
func (p *Printer) writeRow(cells []string, widths []int, style func(col int, s string) string) {
	var sb strings.Builder
	sb.WriteString("  ")
	for i, cell := range cells {
		if i == len(cells)-1 {
			sb.WriteString(style(i, cell))
			break
		}
		sb.WriteString(style(i, runewidth.FillRight(cell, widths[i])))
		sb.WriteString("  ")
	}
	fmt.Fprintln(p.w, strings.TrimRight(sb.String(), " "))
}
