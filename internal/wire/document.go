package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document marshals a bson.D as a JSON object with its keys in document
// order. Values are rendered by Plain.
type Document bson.D

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(Plain(e.Value))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Documents wraps a batch for order-preserving marshaling.
func Documents(docs []bson.D) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document(d)
	}
	return out
}

// Plain converts a BSON value into something encoding/json renders
// faithfully: ObjectIDs as hex, dates as RFC 3339, binary as base64,
// Decimal128 as a JSON number and timestamps as {"t", "i"}.
func Plain(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil
	case bson.D:
		return Document(x)
	case bson.M:
		return sortedDocument(x)
	case map[string]interface{}:
		return sortedDocument(x)
	case bson.A:
		return plainSlice(x)
	case []interface{}:
		return plainSlice(x)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return map[string]uint32{"t": x.T, "i": x.I}
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(x.Data)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case primitive.Decimal128:
		s := x.String()
		if s == "NaN" || s == "Infinity" || s == "-Infinity" {
			return s
		}
		return json.Number(s)
	case float64:
		return plainFloat(x)
	case float32:
		return plainFloat(float64(x))
	case primitive.Regex:
		return fmt.Sprintf("/%s/%s", x.Pattern, x.Options)
	case primitive.JavaScript:
		return string(x)
	case primitive.Symbol:
		return string(x)
	case primitive.CodeWithScope:
		return string(x.Code)
	case primitive.DBPointer:
		return map[string]string{"$ref": x.DB, "$id": x.Pointer.Hex()}
	case primitive.MinKey:
		return map[string]int{"$minKey": 1}
	case primitive.MaxKey:
		return map[string]int{"$maxKey": 1}
	}
	return v
}

func plainFloat(f float64) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

func plainSlice(a []interface{}) []interface{} {
	out := make([]interface{}, len(a))
	for i, v := range a {
		out[i] = Plain(v)
	}
	return out
}

func sortedDocument(m map[string]interface{}) Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Document, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}
