package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Classify maps one decoded BSON value to its TypeTag. Composite values
// report object or array; their contents are the Walker's business.
func Classify(v interface{}) TypeTag {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return TypeNull
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64, primitive.Decimal128:
		return TypeFloat
	case string, primitive.Symbol, primitive.JavaScript, primitive.Regex, primitive.CodeWithScope:
		return TypeString
	case primitive.DateTime, primitive.Timestamp, time.Time:
		return TypeDate
	case primitive.ObjectID, primitive.DBPointer:
		return TypeObjectID
	case primitive.Binary, []byte:
		return TypeBinary
	case bson.D, bson.M, map[string]interface{}, bson.Raw:
		return TypeObject
	case bson.A, []interface{}:
		return TypeArray
	}
	return TypeMixed
}

// IsComposite reports whether a tag has sub-structure.
func IsComposite(t TypeTag) bool {
	return t == TypeObject || t == TypeArray
}
