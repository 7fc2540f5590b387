package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// coerceObjectIDs returns a copy of filter in which 24-hex string values
// compared against _id are replaced by ObjectIDs. Logical operators are
// followed; everything else is copied unchanged.
func coerceObjectIDs(filter bson.D) bson.D {
	out := make(bson.D, 0, len(filter))
	for _, e := range filter {
		switch e.Key {
		case "_id":
			out = append(out, bson.E{Key: e.Key, Value: coerceIDCondition(e.Value)})
		case "$and", "$or", "$nor":
			clauses, ok := asArray(e.Value)
			if !ok {
				out = append(out, e)
				continue
			}
			coerced := make(bson.A, len(clauses))
			for i, c := range clauses {
				if doc, ok := asDoc(c); ok {
					coerced[i] = coerceObjectIDs(doc)
				} else {
					coerced[i] = c
				}
			}
			out = append(out, bson.E{Key: e.Key, Value: coerced})
		default:
			out = append(out, e)
		}
	}
	return out
}

func coerceIDCondition(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return toObjectID(s)
	}
	doc, ok := asDoc(v)
	if !ok {
		return v
	}
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		switch e.Key {
		case "$eq", "$ne":
			if s, ok := e.Value.(string); ok {
				e.Value = toObjectID(s)
			}
		case "$in", "$nin":
			if values, ok := asArray(e.Value); ok {
				coerced := make(bson.A, len(values))
				for i, val := range values {
					if s, ok := val.(string); ok {
						coerced[i] = toObjectID(s)
					} else {
						coerced[i] = val
					}
				}
				e.Value = coerced
			}
		}
		out = append(out, e)
	}
	return out
}

func toObjectID(s string) interface{} {
	if len(s) != 24 {
		return s
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return s
	}
	return oid
}
