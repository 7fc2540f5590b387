package docpath

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Project applies a projection to doc for backends that cannot project
// natively. In inclusive mode only the listed paths (plus _id unless
// keepID is false) survive; in exclusive mode the listed paths are removed.
// Embedded documents are projected recursively and field order is kept.
func Project(doc bson.D, paths []Path, inclusive, keepID bool) bson.D {
	if len(paths) == 0 {
		if !keepID {
			return dropKey(doc, "_id")
		}
		return doc
	}
	if inclusive {
		out := include(doc, paths)
		if keepID {
			if id, ok := Lookup(doc, Path{"_id"}); ok && !hasKey(out, "_id") {
				out = append(bson.D{{Key: "_id", Value: id}}, out...)
			}
		}
		return out
	}
	out := exclude(doc, paths)
	if !keepID {
		out = dropKey(out, "_id")
	}
	return out
}

func include(doc bson.D, paths []Path) bson.D {
	out := bson.D{}
	for _, e := range doc {
		var sub []Path
		whole := false
		for _, p := range paths {
			if p[0] != e.Key {
				continue
			}
			if len(p) == 1 {
				whole = true
				break
			}
			sub = append(sub, p[1:])
		}
		switch {
		case whole:
			out = append(out, e)
		case len(sub) > 0:
			if nested, ok := e.Value.(bson.D); ok {
				out = append(out, bson.E{Key: e.Key, Value: include(nested, sub)})
			}
		}
	}
	return out
}

func exclude(doc bson.D, paths []Path) bson.D {
	out := bson.D{}
	for _, e := range doc {
		var sub []Path
		drop := false
		for _, p := range paths {
			if p[0] != e.Key {
				continue
			}
			if len(p) == 1 {
				drop = true
				break
			}
			sub = append(sub, p[1:])
		}
		if drop {
			continue
		}
		if nested, ok := e.Value.(bson.D); ok && len(sub) > 0 {
			out = append(out, bson.E{Key: e.Key, Value: exclude(nested, sub)})
			continue
		}
		out = append(out, e)
	}
	return out
}

func dropKey(doc bson.D, key string) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

func hasKey(doc bson.D, key string) bool {
	for _, e := range doc {
		if e.Key == key {
			return true
		}
	}
	return false
}

// ParseProjection reads a 0/1 projection document. Operator values such
// as $slice or $elemMatch are rejected.
func ParseProjection(spec bson.D) (paths []Path, inclusive, keepID bool, err error) {
	keepID = true
	modeSet := false
	for _, e := range spec {
		on, ok := projectionFlag(e.Value)
		if !ok {
			return nil, false, false, fmt.Errorf("projection of %q: only 0, 1, true or false are supported", e.Key)
		}
		if e.Key == "_id" {
			keepID = on
			continue
		}
		p, perr := Parse(e.Key)
		if perr != nil {
			return nil, false, false, perr
		}
		if modeSet && on != inclusive {
			return nil, false, false, fmt.Errorf("projection cannot mix inclusion and exclusion")
		}
		inclusive, modeSet = on, true
		paths = append(paths, p)
	}
	return paths, inclusive, keepID, nil
}

func projectionFlag(v interface{}) (on, ok bool) {
	switch n := v.(type) {
	case bool:
		return n, true
	case int32:
		return n != 0, true
	case int64:
		return n != 0, true
	case int:
		return n != 0, true
	case float64:
		return n != 0, true
	}
	return false, false
}
