// Package wire converts between transport payloads and the core types:
// request bodies in relaxed Extended JSON, documents and schemas as plain
// JSON, and stream events as SSE frames or NDJSON lines.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/query"
)

// Request is the body accepted by the schema and stream endpoints.
type Request struct {
	Database   string
	Collection string
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Pipeline   []bson.D
	Skip       int64
	Limit      int64
	BatchSize  int
	SampleSize int
}

// DecodeRequest parses a JSON request body. Documents may use relaxed
// Extended JSON ({"$oid": ...}, {"$date": ...}); numeric fields accept
// numbers or numeric strings. Unknown keys are ignored.
func DecodeRequest(body []byte) (*Request, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, apperr.Invalid("body", "must be a JSON object: %v", err)
	}
	if raw == nil {
		return nil, apperr.Invalid("body", "must be a JSON object")
	}

	req := &Request{}
	var errs apperr.ValidationErrors
	collect := func(err error) {
		if err == nil {
			return
		}
		if ve, ok := err.(*apperr.ValidationError); ok {
			errs = append(errs, ve)
			return
		}
		errs = append(errs, apperr.Invalid("body", "%v", err))
	}

	collect(decodeString(raw, "db_name", &req.Database))
	collect(decodeString(raw, "collection_name", &req.Collection))
	collect(decodeDocument(raw, "filter", &req.Filter))
	collect(decodeDocument(raw, "projection", &req.Projection))
	collect(decodeSort(raw, &req.Sort))
	collect(decodePipeline(raw, &req.Pipeline))
	collect(decodeInt64(raw, "skip", &req.Skip))
	collect(decodeInt64(raw, "limit", &req.Limit))

	var n int64
	collect(decodeInt64(raw, "batch_size", &n))
	req.BatchSize = int(n)
	n = 0
	collect(decodeInt64(raw, "sample_size", &n))
	req.SampleSize = int(n)

	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

// Spec converts the request into a query spec.
func (r *Request) Spec(aggregate bool) *query.Spec {
	return &query.Spec{
		Database:   r.Database,
		Collection: r.Collection,
		Filter:     r.Filter,
		Projection: r.Projection,
		Sort:       r.Sort,
		Pipeline:   r.Pipeline,
		Aggregate:  aggregate,
		Skip:       r.Skip,
		Limit:      r.Limit,
		BatchSize:  r.BatchSize,
	}
}

func present(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func decodeString(raw map[string]json.RawMessage, key string, dst *string) error {
	v, ok := present(raw, key)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return apperr.Invalid(key, "must be a string")
	}
	return nil
}

func decodeDocument(raw map[string]json.RawMessage, key string, dst *bson.D) error {
	v, ok := present(raw, key)
	if !ok {
		return nil
	}
	doc, err := extJSONDocument(v)
	if err != nil {
		return apperr.Invalid(key, "%v", err)
	}
	*dst = doc
	return nil
}

// decodeSort accepts {"a": 1, "b": -1} or [{"a": 1}, {"b": -1}].
func decodeSort(raw map[string]json.RawMessage, dst *bson.D) error {
	v, ok := present(raw, "sort")
	if !ok {
		return nil
	}
	if firstByte(v) != '[' {
		return decodeDocument(raw, "sort", dst)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return apperr.Invalid("sort", "must be an object or an array of objects")
	}
	out := make(bson.D, 0, len(items))
	for i, item := range items {
		doc, err := extJSONDocument(item)
		if err != nil || len(doc) != 1 {
			return apperr.Invalid(fmt.Sprintf("sort[%d]", i), "must be an object with exactly one key")
		}
		out = append(out, doc[0])
	}
	*dst = out
	return nil
}

func decodePipeline(raw map[string]json.RawMessage, dst *[]bson.D) error {
	v, ok := present(raw, "pipeline")
	if !ok {
		return nil
	}
	var stages []json.RawMessage
	if err := json.Unmarshal(v, &stages); err != nil {
		return apperr.Invalid("pipeline", "must be an array of stage documents")
	}
	out := make([]bson.D, 0, len(stages))
	for i, stage := range stages {
		doc, err := extJSONDocument(stage)
		if err != nil {
			return apperr.Invalid(fmt.Sprintf("pipeline[%d]", i), "%v", err)
		}
		out = append(out, doc)
	}
	*dst = out
	return nil
}

func decodeInt64(raw map[string]json.RawMessage, key string, dst *int64) error {
	v, ok := present(raw, key)
	if !ok {
		return nil
	}
	var val interface{}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&val); err != nil {
		return apperr.Invalid(key, "must be an integer")
	}
	if _, isBool := val.(bool); isBool {
		return apperr.Invalid(key, "must be an integer")
	}
	if n, err := cast.ToInt64E(val); err == nil {
		*dst = n
		return nil
	}
	f, err := cast.ToFloat64E(val)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return apperr.Invalid(key, "must be an integer")
	}
	*dst = int64(f)
	return nil
}

func extJSONDocument(v json.RawMessage) (bson.D, error) {
	if firstByte(v) != '{' {
		return nil, fmt.Errorf("must be a JSON object")
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(v, false, &doc); err != nil {
		return nil, fmt.Errorf("invalid extended JSON: %v", err)
	}
	if doc == nil {
		doc = bson.D{}
	}
	return doc, nil
}

func firstByte(v []byte) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}
