package docpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Path
		wantErr bool
	}{
		{"a", Path{"a"}, false},
		{"a.b.c", Path{"a", "b", "c"}, false},
		{"_id", Path{"_id"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{".a", nil, true},
		{"a.", nil, true},
		{"$where", nil, true},
		{"a.$b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsWellFormed(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestPath_AppendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "a"
	x := base.Append("x")
	y := base.Append("y")
	assert.Equal(t, "a.x", x.String())
	assert.Equal(t, "a.y", y.String())
	assert.Equal(t, "a", base.String())
}

func TestCollides(t *testing.T) {
	assert.True(t, Collides(Path{"a"}, Path{"a", "b"}))
	assert.True(t, Collides(Path{"a", "b"}, Path{"a"}))
	assert.True(t, Collides(Path{"a"}, Path{"a"}))
	assert.False(t, Collides(Path{"a", "b"}, Path{"a", "c"}))
	assert.False(t, Collides(Path{"ab"}, Path{"a"}))
}

func TestLookup(t *testing.T) {
	doc := bson.D{
		{Key: "name", Value: "ada"},
		{Key: "address", Value: bson.D{{Key: "city", Value: "London"}}},
		{Key: "meta", Value: bson.M{"tier": "gold"}},
	}

	v, ok := Lookup(doc, Path{"address", "city"})
	assert.True(t, ok)
	assert.Equal(t, "London", v)

	v, ok = Lookup(doc, Path{"meta", "tier"})
	assert.True(t, ok)
	assert.Equal(t, "gold", v)

	_, ok = Lookup(doc, Path{"address", "zip"})
	assert.False(t, ok)
	_, ok = Lookup(doc, Path{"name", "first"})
	assert.False(t, ok)
	_, ok = Lookup(doc, nil)
	assert.False(t, ok)
}

func TestJSONPath(t *testing.T) {
	assert.Equal(t, `$."a"."b"`, JSONPath(Path{"a", "b"}))
	assert.Equal(t, `$."we\"ird"`, JSONPath(Path{`we"ird`}))
	assert.Equal(t, `$`, JSONPath(nil))
}

func TestProject(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: 1},
		{Key: "name", Value: "ada"},
		{Key: "age", Value: 36},
		{Key: "address", Value: bson.D{
			{Key: "city", Value: "London"},
			{Key: "zip", Value: "N1"},
		}},
	}

	t.Run("inclusive keeps id", func(t *testing.T) {
		got := Project(doc, []Path{{"name"}, {"address", "city"}}, true, true)
		assert.Equal(t, bson.D{
			{Key: "_id", Value: 1},
			{Key: "name", Value: "ada"},
			{Key: "address", Value: bson.D{{Key: "city", Value: "London"}}},
		}, got)
	})

	t.Run("inclusive without id", func(t *testing.T) {
		got := Project(doc, []Path{{"age"}}, true, false)
		assert.Equal(t, bson.D{{Key: "age", Value: 36}}, got)
	})

	t.Run("exclusive", func(t *testing.T) {
		got := Project(doc, []Path{{"age"}, {"address", "zip"}}, false, true)
		assert.Equal(t, bson.D{
			{Key: "_id", Value: 1},
			{Key: "name", Value: "ada"},
			{Key: "address", Value: bson.D{{Key: "city", Value: "London"}}},
		}, got)
	})

	t.Run("only id excluded", func(t *testing.T) {
		got := Project(doc, nil, false, false)
		assert.Len(t, got, 3)
		assert.Equal(t, "name", got[0].Key)
	})
}

func TestParseProjection(t *testing.T) {
	paths, inclusive, keepID, err := ParseProjection(bson.D{
		{Key: "a.b", Value: int32(1)},
		{Key: "_id", Value: false},
		{Key: "c", Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []Path{{"a", "b"}, {"c"}}, paths)
	assert.True(t, inclusive)
	assert.False(t, keepID)

	_, _, _, err = ParseProjection(bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 0}})
	assert.Error(t, err)

	_, _, _, err = ParseProjection(bson.D{{Key: "a", Value: bson.D{{Key: "$slice", Value: 2}}}})
	assert.Error(t, err)
}
