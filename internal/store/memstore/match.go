package memstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
)

// matches evaluates the supported filter subset against doc.
func matches(doc bson.D, filter bson.D) (bool, error) {
	for _, e := range filter {
		switch e.Key {
		case "$and", "$or", "$nor":
			clauses, err := clauseList(e.Key, e.Value)
			if err != nil {
				return false, err
			}
			ok, err := logical(doc, e.Key, clauses)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(e.Key, "$") {
			return false, fmt.Errorf("memstore: operator %s: %w", e.Key, apperr.ErrUnsupported)
		}
		path, err := docpath.Parse(e.Key)
		if err != nil {
			return false, err
		}
		actual, present := docpath.Lookup(doc, path)
		ok, err := matchValue(actual, present, e.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func clauseList(op string, v interface{}) ([]bson.D, error) {
	arr, ok := v.(bson.A)
	if !ok {
		if list, ok := v.([]bson.D); ok {
			return list, nil
		}
		return nil, fmt.Errorf("%s requires an array", op)
	}
	out := make([]bson.D, 0, len(arr))
	for _, item := range arr {
		d, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s entries must be documents", op)
		}
		out = append(out, d)
	}
	return out, nil
}

func logical(doc bson.D, op string, clauses []bson.D) (bool, error) {
	for _, c := range clauses {
		ok, err := matches(doc, c)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func matchValue(actual interface{}, present bool, cond interface{}) (bool, error) {
	ops, isOps := cond.(bson.D)
	if !isOps || len(ops) == 0 || !strings.HasPrefix(ops[0].Key, "$") {
		return present && equal(actual, cond), nil
	}
	for _, op := range ops {
		ok, err := applyOperator(actual, present, op.Key, op.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func applyOperator(actual interface{}, present bool, op string, arg interface{}) (bool, error) {
	switch op {
	case "$eq":
		return present && equal(actual, arg), nil
	case "$ne":
		return !present || !equal(actual, arg), nil
	case "$exists":
		want, _ := arg.(bool)
		return present == want, nil
	case "$in", "$nin":
		arr, ok := arg.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s requires an array", op)
		}
		found := false
		for _, v := range arr {
			if present && equal(actual, v) {
				found = true
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		c, ok := compare(actual, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	}
	return false, fmt.Errorf("memstore: operator %s: %w", op, apperr.ErrUnsupported)
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings and dates; ok is false for other pairs.
func compare(a, b interface{}) (int, bool) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ta, ok := instant(a); ok {
		if tb, ok := instant(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func instant(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func toInt64(v interface{}) int64 {
	f, _ := number(v)
	return int64(f)
}

// sortDocs is a stable multi-key sort; incomparable values keep their order
// and missing values sort first, as in the store.
func sortDocs(docs []bson.D, spec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range spec {
			path, err := docpath.Parse(key.Key)
			if err != nil {
				return false
			}
			dir := 1
			if toInt64(key.Value) < 0 {
				dir = -1
			}
			a, aok := docpath.Lookup(docs[i], path)
			b, bok := docpath.Lookup(docs[j], path)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return dir > 0
			case !bok:
				return dir < 0
			}
			c, ok := compare(a, b)
			if !ok || c == 0 {
				continue
			}
			return c*dir < 0
		}
		return false
	})
}
