package wire

import (
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
	"github.com/IngaleChinmay04/MongoNexus/internal/schema"
)

// FieldView is the response shape of one field.
type FieldView struct {
	Type         string                `json:"type" yaml:"type"`
	Types        []string              `json:"types" yaml:"types"`
	Count        int                   `json:"count" yaml:"count"`
	TotalSampled int                   `json:"total_sampled" yaml:"total_sampled"`
	Optional     bool                  `json:"optional" yaml:"optional"`
	Nullable     bool                  `json:"nullable" yaml:"nullable"`
	Examples     []interface{}         `json:"examples,omitempty" yaml:"examples,omitempty"`
	Format       string                `json:"format,omitempty" yaml:"format,omitempty"`
	Case         string                `json:"case,omitempty" yaml:"case,omitempty"`
	Enum         []string              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Fields       map[string]*FieldView `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items        *FieldView            `json:"items,omitempty" yaml:"items,omitempty"`
}

// SchemaView is the response shape of one collection's schema.
type SchemaView struct {
	Database     string                `json:"db_name" yaml:"db_name"`
	Collection   string                `json:"collection_name" yaml:"collection_name"`
	TotalSampled int                   `json:"total_sampled" yaml:"total_sampled"`
	Fields       map[string]*FieldView `json:"fields" yaml:"fields"`
}

// DatabaseView is the response shape of a whole-database schema.
type DatabaseView struct {
	Database    string        `json:"db_name" yaml:"db_name"`
	Collections []*SchemaView `json:"collections" yaml:"collections"`
}

// NewSchemaView converts an aggregate schema for output.
func NewSchemaView(database, collection string, s *schema.AggregateSchema) *SchemaView {
	return &SchemaView{
		Database:     database,
		Collection:   collection,
		TotalSampled: s.TotalSampled,
		Fields:       fieldViews(s),
	}
}

// NewDatabaseView converts a whole-database schema for output.
func NewDatabaseView(d *schema.DatabaseSchema) *DatabaseView {
	out := &DatabaseView{Database: d.Database, Collections: make([]*SchemaView, 0, len(d.Collections))}
	for _, c := range d.Collections {
		out.Collections = append(out.Collections, NewSchemaView(d.Database, c.Name, c.Schema))
	}
	return out
}

func fieldViews(s *schema.AggregateSchema) map[string]*FieldView {
	if s == nil {
		return nil
	}
	out := make(map[string]*FieldView, len(s.Fields))
	for name, f := range s.Fields {
		out[name] = fieldView(f)
	}
	return out
}

func fieldView(f *schema.FieldStats) *FieldView {
	v := &FieldView{
		Type:         f.Type().String(),
		Types:        f.Types.Names(),
		Count:        f.Count,
		TotalSampled: f.TotalSampled,
		Optional:     f.Optional(),
		Nullable:     f.Nullable(),
	}
	for _, ex := range f.Examples {
		v.Examples = append(v.Examples, Plain(ex))
	}
	if p := f.Strings; p != nil {
		v.Format = string(p.Format)
		v.Case = string(p.Case)
		if p.IsEnum() {
			v.Enum = append([]string(nil), p.Values...)
		}
	}
	if f.Nested != nil {
		v.Fields = fieldViews(f.Nested)
	}
	if f.Items != nil {
		if item, ok := f.Items.Fields[docpath.ItemMarker]; ok {
			v.Items = fieldView(item)
		}
	}
	return v
}
