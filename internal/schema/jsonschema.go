package schema

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const objectIDPattern = "^[0-9a-fA-F]{24}$"

// ToJSONSchema exports s as a JSON Schema (draft 2020-12) document. A field
// is required when it was present and non-null in every sampled document.
func ToJSONSchema(s *AggregateSchema, title string) *jsonschema.Schema {
	root := objectSchema(s)
	root.Version = jsonschema.Version
	root.Title = title
	root.Description = fmt.Sprintf("Inferred from %d sampled documents", s.TotalSampled)
	return root
}

func objectSchema(s *AggregateSchema) *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}
	if s == nil {
		return out
	}
	for _, name := range s.Names() {
		f := s.Fields[name]
		out.Properties.Set(name, fieldSchema(f))
		if !f.Optional() && !f.Nullable() {
			out.Required = append(out.Required, name)
		}
	}
	return out
}

func fieldSchema(f *FieldStats) *jsonschema.Schema {
	var variants []*jsonschema.Schema
	nonNull := f.Types.Without(TypeNull)
	for _, t := range nonNull.Tags() {
		variants = append(variants, tagSchema(t, f))
	}
	if f.Types.Has(TypeNull) {
		variants = append(variants, &jsonschema.Schema{Type: "null"})
	}

	var out *jsonschema.Schema
	if len(variants) == 1 {
		out = variants[0]
	} else {
		out = &jsonschema.Schema{AnyOf: variants}
	}

	out.Description = fmt.Sprintf("present in %d of %d", f.Count, f.TotalSampled)
	for _, ex := range f.Examples {
		out.Examples = append(out.Examples, plainValue(ex))
	}
	return out
}

func tagSchema(t TypeTag, f *FieldStats) *jsonschema.Schema {
	switch t {
	case TypeBoolean:
		return &jsonschema.Schema{Type: "boolean"}
	case TypeInteger:
		return &jsonschema.Schema{Type: "integer"}
	case TypeFloat:
		return &jsonschema.Schema{Type: "number"}
	case TypeString:
		out := &jsonschema.Schema{Type: "string"}
		if p := f.Strings; p != nil {
			switch p.Format {
			case FormatEmail:
				out.Format = "email"
			case FormatURL:
				out.Format = "uri"
			case FormatUUID:
				out.Format = "uuid"
			}
			if p.IsEnum() && f.Types.Without(TypeNull) == Set(TypeString) {
				for _, v := range p.Values {
					out.Enum = append(out.Enum, v)
				}
			}
		}
		return out
	case TypeDate:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	case TypeObjectID:
		return &jsonschema.Schema{Type: "string", Pattern: objectIDPattern}
	case TypeBinary:
		return &jsonschema.Schema{Type: "string", ContentEncoding: "base64"}
	case TypeObject:
		return objectSchema(f.Nested)
	case TypeArray:
		out := &jsonschema.Schema{Type: "array"}
		if f.Items != nil {
			if item := f.Items.Fields["[]"]; item != nil {
				out.Items = fieldSchema(item)
			}
		}
		return out
	}
	// mixed: anything goes
	return &jsonschema.Schema{}
}

// plainValue renders an example in a JSON-friendly form.
func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC().Format(time.RFC3339)
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(x.Data)
	case primitive.Decimal128:
		return x.String()
	}
	return v
}
