package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// Top-level filter operators accepted as-is.
var passthroughOperators = map[string]bool{
	"$expr":       true,
	"$text":       true,
	"$comment":    true,
	"$jsonSchema": true,
}

// Pipeline stages that write; the executor is read-only.
var writeStages = map[string]bool{
	"$out":   true,
	"$merge": true,
}

// Translate validates spec against limits and returns the native query.
// All problems found are reported together as apperr.ValidationErrors.
func Translate(spec *Spec, limits Limits) (*store.NativeQuery, error) {
	if spec == nil {
		return nil, apperr.Invalid("", "query is required")
	}

	var errs apperr.ValidationErrors
	errs = append(errs, validateNamespace(spec)...)
	errs = append(errs, validateFilter("filter", spec.Filter)...)

	batch, batchErrs := resolveBatchSize(spec.BatchSize, limits)
	errs = append(errs, batchErrs...)
	errs = append(errs, validateWindow(spec, limits)...)

	projection, projErrs := normalizeProjection(spec.Projection)
	errs = append(errs, projErrs...)
	sort, sortErrs := normalizeSort(spec.Sort)
	errs = append(errs, sortErrs...)

	if spec.IsAggregate() {
		if len(spec.Projection) > 0 {
			errs = append(errs, apperr.Invalid("projection", "cannot be combined with a pipeline; use a $project stage"))
		}
		if len(spec.Sort) > 0 {
			errs = append(errs, apperr.Invalid("sort", "cannot be combined with a pipeline; use a $sort stage"))
		}
		errs = append(errs, validatePipeline(spec.Pipeline)...)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	filter := normalizeFilter(spec.Filter, limits.CoerceObjectIDs)

	ns := spec.Namespace()
	if spec.IsAggregate() {
		pipeline := make([]bson.D, 0, len(spec.Pipeline)+3)
		if len(filter) > 0 {
			pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
		}
		pipeline = append(pipeline, spec.Pipeline...)
		if spec.Skip > 0 {
			pipeline = append(pipeline, bson.D{{Key: "$skip", Value: spec.Skip}})
		}
		if spec.Limit > 0 {
			pipeline = append(pipeline, bson.D{{Key: "$limit", Value: spec.Limit}})
		}
		q := store.NewAggregateQuery(ns, pipeline)
		q.Filter = filter
		q.Limit = spec.Limit
		q.BatchSize = batch
		return q, nil
	}

	q := store.NewFindQuery(ns)
	q.Filter = filter
	q.Projection = projection
	q.Sort = sort
	q.Skip = spec.Skip
	q.Limit = spec.Limit
	q.BatchSize = batch
	return q, nil
}

// NormalizeFilter checks filter the way Translate does and returns it with
// 24-hex _id strings coerced to ObjectIDs when coerce is set. A nil filter
// becomes an empty document.
func NormalizeFilter(filter bson.D, coerce bool) (bson.D, error) {
	if errs := validateFilter("filter", filter); len(errs) > 0 {
		return nil, errs
	}
	return normalizeFilter(filter, coerce), nil
}

func normalizeFilter(filter bson.D, coerce bool) bson.D {
	if filter == nil {
		return bson.D{}
	}
	if coerce {
		return coerceObjectIDs(filter)
	}
	return filter
}

func validateNamespace(spec *Spec) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	if err := ValidateDatabase(spec.Database); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateCollection(spec.Collection); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ValidateDatabase checks a database name against the server's naming
// rules.
func ValidateDatabase(name string) *apperr.ValidationError {
	switch {
	case name == "":
		return apperr.Invalid("db_name", "is required")
	case len(name) > 63:
		return apperr.Invalid("db_name", "must be at most 63 characters")
	case strings.ContainsAny(name, "/\\. \"$\x00"):
		return apperr.Invalid("db_name", "contains a forbidden character")
	}
	return nil
}

// ValidateCollection checks a collection name.
func ValidateCollection(name string) *apperr.ValidationError {
	switch {
	case name == "":
		return apperr.Invalid("collection_name", "is required")
	case strings.ContainsAny(name, "$\x00"):
		return apperr.Invalid("collection_name", "contains a forbidden character")
	}
	return nil
}

func resolveBatchSize(requested int, limits Limits) (int, apperr.ValidationErrors) {
	maxBatch := limits.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultLimits().MaxBatchSize
	}
	if requested == 0 {
		requested = limits.DefaultBatchSize
		if requested <= 0 {
			requested = DefaultLimits().DefaultBatchSize
		}
		return min(requested, maxBatch), nil
	}
	if requested < 1 || requested > maxBatch {
		return 0, apperr.ValidationErrors{apperr.Invalid("batch_size", "must be between 1 and %d, got %d", maxBatch, requested)}
	}
	return requested, nil
}

func validateWindow(spec *Spec, limits Limits) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	if spec.Skip < 0 {
		errs = append(errs, apperr.Invalid("skip", "cannot be negative"))
	}
	switch {
	case spec.Limit < 0:
		errs = append(errs, apperr.Invalid("limit", "cannot be negative"))
	case limits.MaxLimit > 0 && spec.Limit > limits.MaxLimit:
		errs = append(errs, apperr.Invalid("limit", "must not exceed %d", limits.MaxLimit))
	}
	return errs
}

// validateFilter checks the structure of a query document: well-formed
// field paths, operator documents that do not mix operators with plain
// fields, and logical operators that take non-empty arrays of documents.
func validateFilter(field string, filter bson.D) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	seen := make(map[string]bool, len(filter))
	for _, e := range filter {
		if seen[e.Key] {
			errs = append(errs, apperr.Invalid(field, "duplicate key %q", e.Key))
			continue
		}
		seen[e.Key] = true

		if strings.HasPrefix(e.Key, "$") {
			errs = append(errs, validateTopLevelOperator(field, e)...)
			continue
		}
		if !docpath.IsWellFormed(e.Key) {
			errs = append(errs, apperr.Invalid(field, "malformed field path %q", e.Key))
			continue
		}
		errs = append(errs, validateCondition(field+"."+e.Key, e.Value)...)
	}
	return errs
}

func validateTopLevelOperator(field string, e bson.E) apperr.ValidationErrors {
	switch e.Key {
	case "$and", "$or", "$nor":
		clauses, ok := asArray(e.Value)
		if !ok || len(clauses) == 0 {
			return apperr.ValidationErrors{apperr.Invalid(field+"."+e.Key, "must be a non-empty array of documents")}
		}
		var errs apperr.ValidationErrors
		for i, c := range clauses {
			doc, ok := asDoc(c)
			if !ok {
				errs = append(errs, apperr.Invalid(fmt.Sprintf("%s.%s[%d]", field, e.Key, i), "must be a document"))
				continue
			}
			errs = append(errs, validateFilter(fmt.Sprintf("%s.%s[%d]", field, e.Key, i), doc)...)
		}
		return errs
	case "$where":
		return apperr.ValidationErrors{apperr.Invalid(field+".$where", "server-side JavaScript is not allowed")}
	}
	if passthroughOperators[e.Key] {
		return nil
	}
	return apperr.ValidationErrors{apperr.Invalid(field, "unknown top-level operator %q", e.Key)}
}

// validateCondition checks the value side of a field condition.
func validateCondition(field string, value interface{}) apperr.ValidationErrors {
	doc, ok := asDoc(value)
	if !ok || len(doc) == 0 {
		return nil
	}
	operators := 0
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			operators++
		}
	}
	if operators == 0 {
		// Exact match against an embedded document.
		return nil
	}
	if operators != len(doc) {
		return apperr.ValidationErrors{apperr.Invalid(field, "cannot mix operators and field names in one condition")}
	}

	var errs apperr.ValidationErrors
	for _, e := range doc {
		switch e.Key {
		case "$in", "$nin", "$all":
			if _, ok := asArray(e.Value); !ok {
				errs = append(errs, apperr.Invalid(field+"."+e.Key, "must be an array"))
			}
		case "$not":
			if _, isDoc := asDoc(e.Value); !isDoc {
				if _, isRegex := e.Value.(primitive.Regex); !isRegex {
					errs = append(errs, apperr.Invalid(field+".$not", "must be an operator document or a regular expression"))
				}
			} else {
				errs = append(errs, validateCondition(field+".$not", e.Value)...)
			}
		case "$exists":
			if _, ok := e.Value.(bool); !ok && !isNumber(e.Value) {
				errs = append(errs, apperr.Invalid(field+".$exists", "must be a boolean"))
			}
		}
	}
	return errs
}

// normalizeProjection checks a find projection and rewrites 0/1/bool
// values to int32 flags, keeping the caller's field order.
func normalizeProjection(projection bson.D) (bson.D, apperr.ValidationErrors) {
	if len(projection) == 0 {
		return nil, nil
	}

	var errs apperr.ValidationErrors
	fields := orderedmap.NewOrderedMap[string, interface{}]()
	included, excluded := 0, 0

	for _, e := range projection {
		if _, dup := fields.Get(e.Key); dup {
			errs = append(errs, apperr.Invalid("projection", "duplicate field %q", e.Key))
			continue
		}
		if !docpath.IsWellFormed(e.Key) {
			errs = append(errs, apperr.Invalid("projection", "malformed field path %q", e.Key))
			continue
		}

		if doc, ok := asDoc(e.Value); ok {
			if len(doc) != 1 || !strings.HasPrefix(doc[0].Key, "$") {
				errs = append(errs, apperr.Invalid("projection."+e.Key, "must be 0, 1, true, false or a single operator document"))
				continue
			}
			fields.Set(e.Key, doc)
			continue
		}

		on, ok := flag(e.Value)
		if !ok {
			errs = append(errs, apperr.Invalid("projection."+e.Key, "must be 0, 1, true, false or a single operator document"))
			continue
		}
		if e.Key != "_id" {
			if on {
				included++
			} else {
				excluded++
			}
		}
		if on {
			fields.Set(e.Key, int32(1))
		} else {
			fields.Set(e.Key, int32(0))
		}
	}

	if included > 0 && excluded > 0 {
		errs = append(errs, apperr.Invalid("projection", "cannot mix inclusion and exclusion (only _id may be excluded from an inclusion projection)"))
	}

	keys := fields.Keys()
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			a, _ := docpath.Parse(keys[i])
			b, _ := docpath.Parse(keys[j])
			if docpath.Collides(a, b) {
				errs = append(errs, apperr.Invalid("projection", "path collision between %q and %q", keys[i], keys[j]))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	out := make(bson.D, 0, fields.Len())
	for el := fields.Front(); el != nil; el = el.Next() {
		out = append(out, bson.E{Key: el.Key, Value: el.Value})
	}
	return out, nil
}

// normalizeSort checks sort keys and rewrites directions to int32 ±1.
func normalizeSort(sort bson.D) (bson.D, apperr.ValidationErrors) {
	if len(sort) == 0 {
		return nil, nil
	}
	var errs apperr.ValidationErrors
	seen := make(map[string]bool, len(sort))
	out := make(bson.D, 0, len(sort))
	for _, e := range sort {
		if seen[e.Key] {
			errs = append(errs, apperr.Invalid("sort", "duplicate key %q", e.Key))
			continue
		}
		seen[e.Key] = true
		if !docpath.IsWellFormed(e.Key) {
			errs = append(errs, apperr.Invalid("sort", "malformed field path %q", e.Key))
			continue
		}
		if doc, ok := asDoc(e.Value); ok {
			if len(doc) == 1 && doc[0].Key == "$meta" {
				out = append(out, bson.E{Key: e.Key, Value: doc})
				continue
			}
			errs = append(errs, apperr.Invalid("sort."+e.Key, "only {$meta: ...} documents are allowed"))
			continue
		}
		dir, ok := toFloat(e.Value)
		if !ok || (dir != 1 && dir != -1) {
			errs = append(errs, apperr.Invalid("sort."+e.Key, "direction must be 1 or -1"))
			continue
		}
		out = append(out, bson.E{Key: e.Key, Value: int32(dir)})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// validatePipeline checks stage structure only; stage semantics are the
// store's business.
func validatePipeline(pipeline []bson.D) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	for i, stage := range pipeline {
		field := fmt.Sprintf("pipeline[%d]", i)
		if len(stage) != 1 {
			errs = append(errs, apperr.Invalid(field, "stage must be a document with exactly one operator, got %d keys", len(stage)))
			continue
		}
		op := stage[0].Key
		switch {
		case !strings.HasPrefix(op, "$"):
			errs = append(errs, apperr.Invalid(field, "stage operator %q must start with '$'", op))
		case writeStages[op]:
			errs = append(errs, apperr.Invalid(field, "%s writes data and is not allowed", op))
		case op == "$match":
			if doc, ok := asDoc(stage[0].Value); ok {
				errs = append(errs, validateFilter(field+".$match", doc)...)
			} else {
				errs = append(errs, apperr.Invalid(field+".$match", "must be a document"))
			}
		}
	}
	return errs
}

func asDoc(v interface{}) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	}
	return nil, false
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	case []bson.D:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	}
	return nil, false
}

func flag(v interface{}) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	f, ok := toFloat(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

func isNumber(v interface{}) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
