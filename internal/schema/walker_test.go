package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	dec, err := primitive.ParseDecimal128("1.25")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value interface{}
		want  TypeTag
	}{
		{"nil", nil, TypeNull},
		{"null", primitive.Null{}, TypeNull},
		{"undefined", primitive.Undefined{}, TypeNull},
		{"bool", true, TypeBoolean},
		{"int32", int32(1), TypeInteger},
		{"int64", int64(1), TypeInteger},
		{"int", 1, TypeInteger},
		{"float64", 1.0, TypeFloat},
		{"decimal128", dec, TypeFloat},
		{"string", "x", TypeString},
		{"regex", primitive.Regex{Pattern: "^a"}, TypeString},
		{"javascript", primitive.JavaScript("1"), TypeString},
		{"datetime", primitive.NewDateTimeFromTime(fixedTime), TypeDate},
		{"time", fixedTime, TypeDate},
		{"timestamp", primitive.Timestamp{T: 1, I: 1}, TypeDate},
		{"objectid", primitive.NewObjectID(), TypeObjectID},
		{"binary", primitive.Binary{Data: []byte{1}}, TypeBinary},
		{"bytes", []byte{1}, TypeBinary},
		{"document", bson.D{}, TypeObject},
		{"map", bson.M{}, TypeObject},
		{"array", bson.A{}, TypeArray},
		{"slice", []interface{}{}, TypeArray},
		{"minkey", primitive.MinKey{}, TypeMixed},
		{"unknown", struct{}{}, TypeMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value))
		})
	}
}

func TestTypeSet(t *testing.T) {
	s := Set(TypeString, TypeNull)
	assert.True(t, s.Has(TypeString))
	assert.False(t, s.Has(TypeInteger))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "{null,string}", s.String())
	assert.Equal(t, TypeString, s.Resolve())
	assert.Equal(t, Set(TypeString), s.Without(TypeNull))

	tag, err := ParseTypeTag("object_id")
	require.NoError(t, err)
	assert.Equal(t, TypeObjectID, tag)
	_, err = ParseTypeTag("decimal")
	assert.Error(t, err)
}

func TestWalk_NestedAndArrays(t *testing.T) {
	doc := bson.D{
		{Key: "name", Value: "ada"},
		{Key: "addr", Value: bson.D{{Key: "city", Value: "London"}}},
		{Key: "tags", Value: bson.A{"x", int32(2), bson.D{{Key: "k", Value: nil}}}},
	}

	obs := NewWalker(0).Walk(doc)
	assert.Equal(t, []string{
		"addr", "addr.city", "name", "tags", "tags.[]", "tags.[].k",
	}, obs.Paths())

	assert.Equal(t, TypeString, obs["name"].Type)
	assert.Equal(t, "ada", obs["name"].Example)
	require.NotNil(t, obs["name"].Profile)

	tags := obs["tags"]
	assert.Equal(t, TypeArray, tags.Type)
	require.Len(t, tags.Elements, 3)
	for _, el := range tags.Elements {
		assert.Equal(t, "tags.[]", el.Path.String())
	}
	assert.Equal(t, TypeNull, tags.Elements[2].Fields["k"].Type)
	assert.Nil(t, tags.Elements[2].Fields["k"].Example)
}

func TestWalk_DepthGuard(t *testing.T) {
	doc := bson.D{{Key: "a", Value: bson.D{{Key: "b", Value: bson.D{{Key: "c", Value: int32(1)}}}}}}

	obs := NewWalker(2).Walk(doc)
	a := obs["a"]
	assert.Equal(t, TypeObject, a.Type)
	b := a.Fields["b"]
	assert.Equal(t, TypeMixed, b.Type)
	assert.True(t, b.Truncated)
	assert.Nil(t, b.Fields)
	assert.Equal(t, []string{"a", "a.b"}, obs.Paths())
}

func TestWalk_DeepDocumentIsBounded(t *testing.T) {
	var v interface{} = int32(1)
	for i := 0; i < 500; i++ {
		v = bson.D{{Key: "n", Value: v}}
	}
	obs := NewWalker(DefaultMaxDepth).Walk(bson.D{{Key: "root", Value: v}})
	assert.Len(t, obs.Paths(), DefaultMaxDepth)
}

func TestWalk_DuplicateKeysFirstWins(t *testing.T) {
	obs := NewWalker(0).Walk(bson.D{{Key: "a", Value: int32(1)}, {Key: "a", Value: "x"}})
	assert.Equal(t, TypeInteger, obs["a"].Type)
}

func TestWalk_DetachesValues(t *testing.T) {
	data := []byte{1, 2, 3}
	obs := NewWalker(0).Walk(bson.D{{Key: "b", Value: primitive.Binary{Data: data}}})
	data[0] = 9

	ex, ok := obs["b"].Example.(primitive.Binary)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, ex.Data)
}

func TestWalk_MapDocumentsAreSorted(t *testing.T) {
	obs := NewWalker(0).Walk(bson.D{{Key: "m", Value: bson.M{"z": 1, "a": 2}}})
	assert.Equal(t, []string{"m", "m.a", "m.z"}, obs.Paths())
}
