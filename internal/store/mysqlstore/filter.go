package mysqlstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
)

var comparisons = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// sqlBuilder renders query documents as SQL over a JSON column. Arguments
// are collected in placeholder order.
type sqlBuilder struct {
	docColumn string
	args      []interface{}
}

func newSQLBuilder(docColumn string) *sqlBuilder {
	return &sqlBuilder{docColumn: quoteIdentifier(docColumn)}
}

// where renders filter as a boolean SQL expression.
func (b *sqlBuilder) where(filter bson.D) (string, error) {
	if len(filter) == 0 {
		return "1=1", nil
	}
	return b.conjunction(filter)
}

func (b *sqlBuilder) conjunction(filter bson.D) (string, error) {
	parts := make([]string, 0, len(filter))
	for _, e := range filter {
		var (
			part string
			err  error
		)
		switch e.Key {
		case "$and":
			part, err = b.logical(e.Value, " AND ")
		case "$or":
			part, err = b.logical(e.Value, " OR ")
		case "$nor":
			part, err = b.logical(e.Value, " OR ")
			part = "NOT " + part
		default:
			if strings.HasPrefix(e.Key, "$") {
				return "", unsupported(e.Key)
			}
			path, perr := docpath.Parse(e.Key)
			if perr != nil {
				return "", perr
			}
			part, err = b.condition(path, e.Value)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *sqlBuilder) logical(v interface{}, sep string) (string, error) {
	clauses, ok := v.(bson.A)
	if !ok || len(clauses) == 0 {
		return "", fmt.Errorf("logical operator requires a non-empty array")
	}
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		doc, ok := c.(bson.D)
		if !ok {
			return "", fmt.Errorf("logical operator entries must be documents")
		}
		part, err := b.where(doc)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *sqlBuilder) condition(path docpath.Path, v interface{}) (string, error) {
	ops, ok := v.(bson.D)
	if !ok || len(ops) == 0 || !strings.HasPrefix(ops[0].Key, "$") {
		return b.equals(path, v)
	}

	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		var (
			part string
			err  error
		)
		switch op.Key {
		case "$eq":
			part, err = b.equals(path, op.Value)
		case "$ne":
			var eq string
			eq, err = b.equals(path, op.Value)
			part = "NOT " + eq
		case "$gt", "$gte", "$lt", "$lte":
			part, err = b.compare(path, comparisons[op.Key], op.Value)
		case "$in":
			part, err = b.in(path, op.Value, false)
		case "$nin":
			part, err = b.in(path, op.Value, true)
		case "$exists":
			part = b.exists(path, truthy(op.Value))
		default:
			return "", unsupported(op.Key)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *sqlBuilder) extract(path docpath.Path) string {
	b.args = append(b.args, docpath.JSONPath(path))
	return fmt.Sprintf("JSON_EXTRACT(%s, ?)", b.docColumn)
}

func (b *sqlBuilder) value(v interface{}) (string, error) {
	js, err := jsonValue(v)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, js)
	return "CAST(? AS JSON)", nil
}

// equals matches like the document store does for scalars: null matches a
// missing field too.
func (b *sqlBuilder) equals(path docpath.Path, v interface{}) (string, error) {
	if v == nil {
		left := b.extract(path)
		right := b.extract(path)
		return fmt.Sprintf("(%s IS NULL OR JSON_TYPE(%s) = 'NULL')", left, right), nil
	}
	left := b.extract(path)
	right, err := b.value(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("COALESCE(%s = %s, FALSE)", left, right), nil
}

func (b *sqlBuilder) compare(path docpath.Path, op string, v interface{}) (string, error) {
	left := b.extract(path)
	right, err := b.value(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", left, op, right), nil
}

func (b *sqlBuilder) in(path docpath.Path, v interface{}, negate bool) (string, error) {
	values, ok := v.(bson.A)
	if !ok {
		return "", fmt.Errorf("$in/$nin requires an array")
	}
	if len(values) == 0 {
		if negate {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	parts := make([]string, 0, len(values))
	for _, val := range values {
		part, err := b.equals(path, val)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	expr := "(" + strings.Join(parts, " OR ") + ")"
	if negate {
		expr = "NOT " + expr
	}
	return expr, nil
}

func (b *sqlBuilder) exists(path docpath.Path, want bool) string {
	b.args = append(b.args, docpath.JSONPath(path))
	expr := fmt.Sprintf("JSON_CONTAINS_PATH(%s, 'one', ?)", b.docColumn)
	if !want {
		expr = "NOT " + expr
	}
	return expr
}

// orderBy renders a sort document; ties fall back to the id column.
func (b *sqlBuilder) orderBy(sort bson.D, idColumn string) (string, error) {
	parts := make([]string, 0, len(sort)+1)
	for _, e := range sort {
		path, err := docpath.Parse(e.Key)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		switch d := e.Value.(type) {
		case int32:
			if d < 0 {
				dir = "DESC"
			}
		case int64:
			if d < 0 {
				dir = "DESC"
			}
		case int:
			if d < 0 {
				dir = "DESC"
			}
		case float64:
			if d < 0 {
				dir = "DESC"
			}
		default:
			return "", unsupported("sort " + e.Key)
		}
		parts = append(parts, b.extract(path)+" "+dir)
	}
	parts = append(parts, quoteIdentifier(idColumn)+" ASC")
	return strings.Join(parts, ", "), nil
}

// jsonValue renders v as relaxed Extended JSON, the form documents are
// stored in.
func jsonValue(v interface{}) (string, error) {
	raw, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter value: %w", err)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", fmt.Errorf("failed to encode filter value: %w", err)
	}
	return string(wrapper["v"]), nil
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int32:
		return b != 0
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	}
	return v != nil
}

func unsupported(what string) error {
	return fmt.Errorf("mysql backend: %s: %w", what, apperr.ErrUnsupported)
}
