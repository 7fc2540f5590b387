// Package docpath parses and manipulates dotted field paths inside BSON
// documents. A path is an ordered list of field names; the special segment
// "[]" stands for "every element of an array" in schema output.
package docpath

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// ItemMarker is the path segment shared by all elements of an array.
const ItemMarker = "[]"

// Path is an ordered sequence of field names or array markers.
type Path []string

// Parse splits a dotted path ("a.b.c") and validates every segment.
func Parse(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("path is empty")
	}
	segs := strings.Split(s, ".")
	for i, seg := range segs {
		if err := validateSegment(seg); err != nil {
			return nil, fmt.Errorf("path %q segment %d: %w", s, i, err)
		}
	}
	return Path(segs), nil
}

// IsWellFormed reports whether s parses as a field path.
func IsWellFormed(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func validateSegment(seg string) error {
	switch {
	case seg == "":
		return fmt.Errorf("empty segment")
	case strings.HasPrefix(seg, "$"):
		return fmt.Errorf("segment %q must not start with '$'", seg)
	case strings.ContainsRune(seg, 0):
		return fmt.Errorf("segment contains a NUL byte")
	}
	return nil
}

// String joins the path with dots.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Append returns a new path with seg added; p is not modified.
func (p Path) Append(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// HasPrefix reports whether q is a (non-strict) prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Collides reports whether one path is a prefix of the other, which the
// store rejects in projections ("a" together with "a.b").
func Collides(a, b Path) bool {
	return a.HasPrefix(b) || b.HasPrefix(a)
}

// Lookup returns the value at path inside doc. Only embedded documents are
// traversed; array positions are not addressed.
func Lookup(doc bson.D, p Path) (interface{}, bool) {
	if len(p) == 0 {
		return nil, false
	}
	var cur interface{} = doc
	for _, seg := range p {
		next, ok := field(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func field(v interface{}, key string) (interface{}, bool) {
	switch d := v.(type) {
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value, true
			}
		}
	case bson.M:
		val, ok := d[key]
		return val, ok
	}
	return nil, false
}

// JSONPath renders p as a MySQL JSON path expression with every key quoted,
// e.g. `$."a"."b"`.
func JSONPath(p Path) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range p {
		b.WriteString(`."`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(seg))
		b.WriteString(`"`)
	}
	return b.String()
}
