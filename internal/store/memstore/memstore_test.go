package memstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

var people = store.Namespace{Database: "app", Collection: "people"}

func seed() *Store {
	s := New(Options{})
	s.Insert(people,
		bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "ada"}, {Key: "age", Value: int32(36)}},
		bson.D{{Key: "_id", Value: 2}, {Key: "name", Value: "grace"}, {Key: "age", Value: int32(45)}},
		bson.D{{Key: "_id", Value: 3}, {Key: "name", Value: "alan"}, {Key: "age", Value: int32(41)}},
		bson.D{{Key: "_id", Value: 4}, {Key: "name", Value: "edsger"}},
	)
	return s
}

func drain(t *testing.T, c store.Cursor, n int) []bson.D {
	t.Helper()
	var out []bson.D
	for {
		batch, err := c.NextBatch(context.Background(), n)
		out = append(out, batch...)
		if errors.Is(err, store.EOF) {
			return out
		}
		require.NoError(t, err)
	}
}

func TestStore_Count(t *testing.T) {
	s := seed()
	ctx := context.Background()

	n, err := s.Count(ctx, people, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = s.Count(ctx, people, bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 40}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Count(ctx, people, bson.D{{Key: "age", Value: bson.D{{Key: "$exists", Value: false}}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_FindSortSkipLimitProject(t *testing.T) {
	s := seed()
	q := store.NewFindQuery(people)
	q.Filter = bson.D{{Key: "age", Value: bson.D{{Key: "$exists", Value: true}}}}
	q.Sort = bson.D{{Key: "age", Value: -1}}
	q.Skip = 1
	q.Limit = 1
	q.Projection = bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 0}}

	c, err := s.Find(context.Background(), q)
	require.NoError(t, err)
	docs := drain(t, c, 10)
	assert.Equal(t, []bson.D{{{Key: "name", Value: "alan"}}}, docs)
}

func TestStore_LogicalOperators(t *testing.T) {
	s := seed()
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: "ada"}},
		bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"alan", "nobody"}}}}},
	}}}
	n, err := s.Count(context.Background(), people, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_UnsupportedOperator(t *testing.T) {
	s := seed()
	_, err := s.Count(context.Background(), people, bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^a"}}}})
	assert.ErrorIs(t, err, apperr.ErrUnsupported)
}

func TestStore_Aggregate(t *testing.T) {
	s := seed()
	q := store.NewAggregateQuery(people, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 45}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "name", Value: 1}}}},
		{{Key: "$project", Value: bson.D{{Key: "name", Value: 1}}}},
	})
	c, err := s.Aggregate(context.Background(), q)
	require.NoError(t, err)
	docs := drain(t, c, 1)
	require.Len(t, docs, 2)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "ada"}}, docs[0])
	assert.Equal(t, bson.D{{Key: "_id", Value: 3}, {Key: "name", Value: "alan"}}, docs[1])

	_, err = s.Aggregate(context.Background(), store.NewAggregateQuery(people, []bson.D{{{Key: "$group", Value: bson.D{}}}}))
	assert.ErrorIs(t, err, apperr.ErrUnsupported)
}

func TestCursor_RecordsRequestsAndCloses(t *testing.T) {
	s := seed()
	c, err := s.Find(context.Background(), store.NewFindQuery(people))
	require.NoError(t, err)

	docs := drain(t, c, 3)
	assert.Len(t, docs, 4)
	require.NoError(t, c.Close(context.Background()))

	cursors := s.Cursors()
	require.Len(t, cursors, 1)
	assert.Equal(t, []int{3, 3, 3}, cursors[0].Requests())
	assert.Equal(t, 1, cursors[0].Closes())
}

func TestCursor_InjectedBatchError(t *testing.T) {
	boom := errors.New("boom")
	s := New(Options{BatchErr: boom, BatchErrCall: 2})
	s.Insert(people, bson.D{{Key: "a", Value: 1}}, bson.D{{Key: "a", Value: 2}})

	c, err := s.Find(context.Background(), store.NewFindQuery(people))
	require.NoError(t, err)
	_, err = c.NextBatch(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.NextBatch(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestStore_SampleWithoutReplacement(t *testing.T) {
	s := seed()
	c, err := s.Sample(context.Background(), people, nil, 10)
	require.NoError(t, err)
	docs := drain(t, c, 2)
	require.Len(t, docs, 4)

	seen := map[interface{}]bool{}
	for _, d := range docs {
		seen[d[0].Value] = true
	}
	assert.Len(t, seen, 4)
}

func TestStore_LoadAndList(t *testing.T) {
	s := New(Options{})
	input := `{"_id": {"$oid": "5f1d7f3e9d1e8b2a3c4d5e6f"}, "n": 1}

{"n": 2.5, "tags": ["x"]}
`
	n, err := s.Load(store.Namespace{Database: "db", Collection: "b"}, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	s.Insert(store.Namespace{Database: "db", Collection: "a"}, bson.D{})
	s.Insert(store.Namespace{Database: "other", Collection: "z"}, bson.D{})

	names, err := s.ListCollections(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}
