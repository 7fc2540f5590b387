// Package schema infers the implicit structure of a document collection.
//
// A Walker turns one document into Observations, a Merger folds the
// observations of many documents into an AggregateSchema, and a Sampler
// chooses which documents to look at. Merging is associative and
// commutative, so partial schemas built from disjoint samples can be
// combined in any order with the same result.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
)

// TypeTag classifies a single value.
type TypeTag uint8

const (
	TypeNull TypeTag = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeString
	TypeDate
	TypeObjectID
	TypeBinary
	TypeObject
	TypeArray
	TypeMixed
)

var typeNames = [...]string{
	TypeNull:     "null",
	TypeBoolean:  "boolean",
	TypeInteger:  "integer",
	TypeFloat:    "float",
	TypeString:   "string",
	TypeDate:     "date",
	TypeObjectID: "object_id",
	TypeBinary:   "binary",
	TypeObject:   "object",
	TypeArray:    "array",
	TypeMixed:    "mixed",
}

func (t TypeTag) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TypeTag(%d)", t)
}

// MarshalText renders the tag name.
func (t TypeTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTypeTag is the inverse of TypeTag.String.
func ParseTypeTag(s string) (TypeTag, error) {
	for i, name := range typeNames {
		if name == s {
			return TypeTag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown type tag %q", s)
}

// TypeSet is a set of TypeTags. Union is bitwise OR.
type TypeSet uint16

// Set returns a set holding the given tags.
func Set(tags ...TypeTag) TypeSet {
	var s TypeSet
	for _, t := range tags {
		s = s.Add(t)
	}
	return s
}

// Add returns s with t added.
func (s TypeSet) Add(t TypeTag) TypeSet { return s | 1<<t }

// Has reports whether t is in s.
func (s TypeSet) Has(t TypeTag) bool { return s&(1<<t) != 0 }

// Union returns s ∪ o.
func (s TypeSet) Union(o TypeSet) TypeSet { return s | o }

// Without returns s with t removed.
func (s TypeSet) Without(t TypeTag) TypeSet { return s &^ (1 << t) }

// Len is the number of tags in s.
func (s TypeSet) Len() int {
	n := 0
	for x := s; x != 0; x &= x - 1 {
		n++
	}
	return n
}

// Tags lists the members of s in TypeTag order.
func (s TypeSet) Tags() []TypeTag {
	var out []TypeTag
	for t := TypeNull; t <= TypeMixed; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Names lists the member names of s in TypeTag order.
func (s TypeSet) Names() []string {
	tags := s.Tags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

func (s TypeSet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// Resolve collapses a set into the single tag a consumer should see. Null
// never forces mixed; any combination of two or more non-null tags,
// integer and float included, is mixed.
func (s TypeSet) Resolve() TypeTag {
	nonNull := s.Without(TypeNull)
	switch {
	case nonNull == 0:
		if s.Has(TypeNull) {
			return TypeNull
		}
		return TypeMixed
	case nonNull.Len() == 1:
		return nonNull.Tags()[0]
	}
	return TypeMixed
}

// FieldStats aggregates everything observed at one field path.
type FieldStats struct {
	Types        TypeSet
	Count        int // documents (or elements) in which the field was present
	TotalSampled int // documents (or elements) examined at this level
	NullCount    int
	Nested       *AggregateSchema // sub-fields, when an object was observed
	Items        *AggregateSchema // element schema under the "[]" key, when an array was observed
	Examples     []interface{}
	Strings      *StringProfile
}

// Type returns the resolved type tag.
func (f *FieldStats) Type() TypeTag { return f.Types.Resolve() }

// Optional reports whether some sampled document lacked the field.
func (f *FieldStats) Optional() bool { return f.Count < f.TotalSampled }

// Nullable reports whether the field was ever explicitly null.
func (f *FieldStats) Nullable() bool { return f.NullCount > 0 }

// Mixed reports whether incompatible types were observed.
func (f *FieldStats) Mixed() bool { return f.Type() == TypeMixed }

// Clone returns a deep copy.
func (f *FieldStats) Clone() *FieldStats {
	if f == nil {
		return nil
	}
	out := *f
	out.Nested = f.Nested.Clone()
	out.Items = f.Items.Clone()
	if f.Examples != nil {
		out.Examples = append([]interface{}(nil), f.Examples...)
	}
	out.Strings = f.Strings.Clone()
	return &out
}

// AggregateSchema maps field names to their statistics. Nested levels hang
// off FieldStats.Nested and FieldStats.Items.
type AggregateSchema struct {
	TotalSampled int
	Fields       map[string]*FieldStats
}

// NewAggregateSchema returns an empty schema.
func NewAggregateSchema() *AggregateSchema {
	return &AggregateSchema{Fields: make(map[string]*FieldStats)}
}

// Clone returns a deep copy.
func (s *AggregateSchema) Clone() *AggregateSchema {
	if s == nil {
		return nil
	}
	out := &AggregateSchema{TotalSampled: s.TotalSampled, Fields: make(map[string]*FieldStats, len(s.Fields))}
	for k, v := range s.Fields {
		out.Fields[k] = v.Clone()
	}
	return out
}

// Names returns the top-level field names, sorted.
func (s *AggregateSchema) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup finds the stats at a path such as "address.city" or "tags.[]".
func (s *AggregateSchema) Lookup(path string) *FieldStats {
	p, err := parseSchemaPath(path)
	if err != nil {
		return nil
	}
	cur := s
	var f *FieldStats
	for i, seg := range p {
		if cur == nil {
			return nil
		}
		f = cur.Fields[seg]
		if f == nil {
			return nil
		}
		if i == len(p)-1 {
			break
		}
		if p[i+1] == docpath.ItemMarker {
			cur = f.Items
			continue
		}
		cur = f.Nested
	}
	return f
}

// parseSchemaPath accepts the "[]" marker that docpath.Parse leaves to
// schema output.
func parseSchemaPath(path string) (docpath.Path, error) {
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}
	return docpath.Path(strings.Split(path, ".")), nil
}

// Row is one line of a flattened schema.
type Row struct {
	Path  string
	Depth int
	Stats *FieldStats
}

// Flatten lists every path depth first, siblings sorted by name, e.g.
// "a", "a.b", "tags", "tags.[]", "tags.[].name".
func (s *AggregateSchema) Flatten() []Row {
	var rows []Row
	s.flatten(nil, &rows)
	return rows
}

func (s *AggregateSchema) flatten(prefix docpath.Path, rows *[]Row) {
	if s == nil {
		return
	}
	for _, name := range s.Names() {
		f := s.Fields[name]
		p := prefix.Append(name)
		*rows = append(*rows, Row{Path: p.String(), Depth: len(prefix), Stats: f})
		f.Nested.flatten(p, rows)
		f.Items.flatten(p, rows)
	}
}
