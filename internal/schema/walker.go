package schema

import (
	"sort"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
)

// DefaultMaxDepth bounds recursion into nested documents and arrays.
const DefaultMaxDepth = 50

const maxExampleRunes = 128

// FieldObservation is what one document says about one field.
type FieldObservation struct {
	Path      docpath.Path
	Type      TypeTag
	Example   interface{}         // detached copy of a scalar value; nil for composites and nulls
	Profile   *StringProfile      // set for plain string values
	Fields    Observations        // sub-fields of an object
	Elements  []*FieldObservation // one per array element, all sharing Path+"[]"
	Truncated bool                // the depth guard stopped recursion here
}

// Observations maps a field name to its observation within one level of
// one document.
type Observations map[string]*FieldObservation

// Paths returns every path observed, de-duplicated and sorted.
func (o Observations) Paths() []string {
	seen := make(map[string]bool)
	o.collect(seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (o Observations) collect(seen map[string]bool) {
	for _, obs := range o {
		obs.collect(seen)
	}
}

func (f *FieldObservation) collect(seen map[string]bool) {
	seen[f.Path.String()] = true
	f.Fields.collect(seen)
	for _, el := range f.Elements {
		el.collect(seen)
	}
}

// Walker turns documents into Observations.
type Walker struct {
	MaxDepth int
}

// NewWalker returns a Walker with the given depth bound (DefaultMaxDepth
// when maxDepth <= 0).
func NewWalker(maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{MaxDepth: maxDepth}
}

// Walk observes every field of doc. Top-level fields are at depth 1; a
// composite value found at depth MaxDepth or deeper is recorded as opaque
// mixed and not entered.
func (w *Walker) Walk(doc bson.D) Observations {
	return w.walkObject(doc, nil, 1)
}

func (w *Walker) maxDepth() int {
	if w == nil || w.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return w.MaxDepth
}

func (w *Walker) walkObject(doc bson.D, prefix docpath.Path, depth int) Observations {
	obs := make(Observations, len(doc))
	for _, e := range doc {
		// Duplicate keys: the first occurrence is the one the store reads.
		if _, dup := obs[e.Key]; dup {
			continue
		}
		obs[e.Key] = w.walkValue(e.Value, prefix.Append(e.Key), depth)
	}
	return obs
}

func (w *Walker) walkValue(v interface{}, path docpath.Path, depth int) *FieldObservation {
	tag := Classify(v)
	obs := &FieldObservation{Path: path, Type: tag}

	if IsComposite(tag) && depth >= w.maxDepth() {
		obs.Type = TypeMixed
		obs.Truncated = true
		return obs
	}

	switch tag {
	case TypeObject:
		obs.Fields = w.walkObject(asDocument(v), path, depth+1)
	case TypeArray:
		items := asArray(v)
		itemPath := path.Append(docpath.ItemMarker)
		obs.Elements = make([]*FieldObservation, 0, len(items))
		for _, item := range items {
			obs.Elements = append(obs.Elements, w.walkValue(item, itemPath, depth+1))
		}
	case TypeNull, TypeMixed:
	default:
		obs.Example = detach(v)
		if s, ok := v.(string); ok {
			obs.Profile = ProfileString(s)
		}
	}
	return obs
}

// asDocument normalizes the object representations the decoder may hand us.
func asDocument(v interface{}) bson.D {
	switch d := v.(type) {
	case bson.D:
		return d
	case bson.M:
		return sortedDoc(d)
	case map[string]interface{}:
		return sortedDoc(d)
	case bson.Raw:
		var out bson.D
		if err := bson.Unmarshal(d, &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

func sortedDoc(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

func asArray(v interface{}) []interface{} {
	switch a := v.(type) {
	case bson.A:
		return a
	case []interface{}:
		return a
	}
	return nil
}

// detach copies a scalar so the schema keeps no reference into the sampled
// document, and normalizes a few representations.
func detach(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return truncate(x)
	case primitive.Binary:
		return primitive.Binary{Subtype: x.Subtype, Data: append([]byte(nil), x.Data...)}
	case []byte:
		return primitive.Binary{Data: append([]byte(nil), x...)}
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case primitive.Regex:
		return truncate(x.String())
	case primitive.JavaScript:
		return truncate(string(x))
	case primitive.Symbol:
		return truncate(string(x))
	case primitive.CodeWithScope:
		return truncate(string(x.Code))
	case primitive.DBPointer:
		return x.Pointer
	}
	return v
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxExampleRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxExampleRunes])
}
