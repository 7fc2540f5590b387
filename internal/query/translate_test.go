package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
	"github.com/IngaleChinmay04/MongoNexus/internal/store/memstore"
)

func findSpec() *Spec {
	return &Spec{Database: "app", Collection: "users"}
}

func TestTranslate_FindDefaults(t *testing.T) {
	q, err := Translate(findSpec(), DefaultLimits())
	require.NoError(t, err)

	assert.False(t, q.IsAggregate())
	assert.Equal(t, store.Namespace{Database: "app", Collection: "users"}, q.Namespace)
	assert.Equal(t, bson.D{}, q.Filter)
	assert.Equal(t, 10, q.BatchSize)
	assert.Zero(t, q.Limit)
}

func TestTranslate_NormalizesProjectionAndSort(t *testing.T) {
	spec := findSpec()
	spec.Projection = bson.D{{Key: "name", Value: true}, {Key: "_id", Value: 0}, {Key: "age", Value: 1.0}}
	spec.Sort = bson.D{{Key: "age", Value: -1.0}, {Key: "name", Value: int64(1)}}

	q, err := Translate(spec, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "name", Value: int32(1)},
		{Key: "_id", Value: int32(0)},
		{Key: "age", Value: int32(1)},
	}, q.Projection)
	assert.Equal(t, bson.D{{Key: "age", Value: int32(-1)}, {Key: "name", Value: int32(1)}}, q.Sort)
}

func TestTranslate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Spec)
		field string
	}{
		{"missing db", func(s *Spec) { s.Database = "" }, "db_name"},
		{"bad db char", func(s *Spec) { s.Database = "a.b" }, "db_name"},
		{"missing collection", func(s *Spec) { s.Collection = "" }, "collection_name"},
		{"dollar collection", func(s *Spec) { s.Collection = "a$b" }, "collection_name"},
		{"malformed filter path", func(s *Spec) { s.Filter = bson.D{{Key: "a..b", Value: 1}} }, "filter"},
		{"unknown top-level operator", func(s *Spec) { s.Filter = bson.D{{Key: "$bogus", Value: 1}} }, "filter"},
		{"where", func(s *Spec) { s.Filter = bson.D{{Key: "$where", Value: "true"}} }, "filter.$where"},
		{"empty or", func(s *Spec) { s.Filter = bson.D{{Key: "$or", Value: bson.A{}}} }, "filter.$or"},
		{"or of scalars", func(s *Spec) { s.Filter = bson.D{{Key: "$or", Value: bson.A{1}}} }, "filter.$or[0]"},
		{"mixed operator doc", func(s *Spec) {
			s.Filter = bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 1}, {Key: "x", Value: 2}}}}
		}, "filter.age"},
		{"in without array", func(s *Spec) {
			s.Filter = bson.D{{Key: "age", Value: bson.D{{Key: "$in", Value: 1}}}}
		}, "filter.age.$in"},
		{"mixed projection", func(s *Spec) {
			s.Projection = bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 0}}
		}, "projection"},
		{"colliding projection", func(s *Spec) {
			s.Projection = bson.D{{Key: "a", Value: 1}, {Key: "a.b", Value: 1}}
		}, "projection"},
		{"duplicate projection", func(s *Spec) {
			s.Projection = bson.D{{Key: "a", Value: 1}, {Key: "a", Value: 1}}
		}, "projection"},
		{"string projection", func(s *Spec) { s.Projection = bson.D{{Key: "a", Value: "yes"}} }, "projection.a"},
		{"bad sort direction", func(s *Spec) { s.Sort = bson.D{{Key: "a", Value: 2}} }, "sort.a"},
		{"duplicate sort", func(s *Spec) { s.Sort = bson.D{{Key: "a", Value: 1}, {Key: "a", Value: -1}} }, "sort"},
		{"batch too large", func(s *Spec) { s.BatchSize = 101 }, "batch_size"},
		{"batch negative", func(s *Spec) { s.BatchSize = -1 }, "batch_size"},
		{"negative skip", func(s *Spec) { s.Skip = -1 }, "skip"},
		{"negative limit", func(s *Spec) { s.Limit = -5 }, "limit"},
		{"multi-key stage", func(s *Spec) {
			s.Pipeline = []bson.D{{{Key: "$match", Value: bson.D{}}, {Key: "$limit", Value: 1}}}
		}, "pipeline[0]"},
		{"stage without dollar", func(s *Spec) { s.Pipeline = []bson.D{{{Key: "match", Value: bson.D{}}}} }, "pipeline[0]"},
		{"write stage", func(s *Spec) { s.Pipeline = []bson.D{{{Key: "$out", Value: "copy"}}} }, "pipeline[0]"},
		{"projection with pipeline", func(s *Spec) {
			s.Aggregate = true
			s.Projection = bson.D{{Key: "a", Value: 1}}
		}, "projection"},
		{"sort with pipeline", func(s *Spec) {
			s.Aggregate = true
			s.Sort = bson.D{{Key: "a", Value: 1}}
		}, "sort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := findSpec()
			tt.edit(spec)

			q, err := Translate(spec, DefaultLimits())
			require.Error(t, err)
			assert.Nil(t, q)
			assert.True(t, apperr.IsValidation(err))

			var errs apperr.ValidationErrors
			require.ErrorAs(t, err, &errs)
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestTranslate_ReportsAllProblems(t *testing.T) {
	spec := &Spec{BatchSize: 500, Skip: -1}
	_, err := Translate(spec, DefaultLimits())

	var errs apperr.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 4)
}

func TestTranslate_MaxLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxLimit = 1000

	spec := findSpec()
	spec.Limit = 1000
	_, err := Translate(spec, limits)
	require.NoError(t, err)

	spec.Limit = 1001
	_, err = Translate(spec, limits)
	assert.True(t, apperr.IsValidation(err))
}

func TestTranslate_DefaultBatchSizeClampedToMax(t *testing.T) {
	q, err := Translate(findSpec(), Limits{DefaultBatchSize: 50, MaxBatchSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, q.BatchSize)
}

func TestTranslate_Pipeline(t *testing.T) {
	spec := findSpec()
	spec.Filter = bson.D{{Key: "status", Value: "A"}}
	spec.Pipeline = []bson.D{{{Key: "$project", Value: bson.D{{Key: "status", Value: 1}}}}}
	spec.Skip = 5
	spec.Limit = 20
	spec.BatchSize = 7

	q, err := Translate(spec, DefaultLimits())
	require.NoError(t, err)
	require.True(t, q.IsAggregate())
	assert.Equal(t, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: "A"}}}},
		{{Key: "$project", Value: bson.D{{Key: "status", Value: 1}}}},
		{{Key: "$skip", Value: int64(5)}},
		{{Key: "$limit", Value: int64(20)}},
	}, q.Pipeline)
	assert.Equal(t, int64(20), q.Limit)
	assert.Equal(t, 7, q.BatchSize)
}

func TestTranslate_EmptyAggregate(t *testing.T) {
	spec := findSpec()
	spec.Aggregate = true

	q, err := Translate(spec, DefaultLimits())
	require.NoError(t, err)
	assert.True(t, q.IsAggregate())
	assert.Empty(t, q.Pipeline)
}

func TestTranslate_ValidatesMatchStages(t *testing.T) {
	spec := findSpec()
	spec.Pipeline = []bson.D{{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{}}}}}}
	_, err := Translate(spec, DefaultLimits())
	assert.True(t, apperr.IsValidation(err))
}

func TestTranslate_CoercesObjectIDs(t *testing.T) {
	hex := "65f0c3a1b2c3d4e5f6a7b8c9"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	spec := findSpec()
	spec.Filter = bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "_id", Value: hex}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{hex, "short"}}}}},
		}},
		{Key: "owner", Value: hex},
	}

	q, err := Translate(spec, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "_id", Value: oid}},
			bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid, "short"}}}}},
		}},
		{Key: "owner", Value: hex},
	}, q.Filter)

	// The caller's filter is left untouched.
	assert.Equal(t, hex, spec.Filter[1].Value)

	limits := DefaultLimits()
	limits.CoerceObjectIDs = false
	q, err = Translate(&Spec{Database: "app", Collection: "users", Filter: bson.D{{Key: "_id", Value: hex}}}, limits)
	require.NoError(t, err)
	assert.Equal(t, hex, q.Filter[0].Value)
}

func TestTranslate_ConflictingProjectionOpensNoCursor(t *testing.T) {
	st := memstore.New(memstore.Options{})
	st.Insert(store.Namespace{Database: "app", Collection: "users"}, bson.D{{Key: "a", Value: 1}})

	spec := findSpec()
	spec.Projection = bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 0}}

	q, err := Translate(spec, DefaultLimits())
	require.Error(t, err)
	if q != nil {
		_, _ = store.Open(context.Background(), st, q)
	}
	assert.Empty(t, st.Cursors())
}

func TestNormalizeFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	got, err := NormalizeFilter(nil, true)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, got)

	got, err = NormalizeFilter(bson.D{{Key: "_id", Value: oid.Hex()}}, true)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: oid}}, got)

	got, err = NormalizeFilter(bson.D{{Key: "_id", Value: oid.Hex()}}, false)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: oid.Hex()}}, got)

	_, err = NormalizeFilter(bson.D{{Key: "$where", Value: "sleep(1000)"}}, true)
	require.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "filter.$where")
}
