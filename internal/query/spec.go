// Package query validates caller-supplied queries and normalizes them into
// the store's native form. Every check here runs before a cursor is opened.
package query

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// Spec is a caller's query request.
type Spec struct {
	Database   string
	Collection string
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Pipeline   []bson.D
	Aggregate  bool // run as a pipeline even when Pipeline is empty
	Skip       int64
	Limit      int64 // 0 means no limit
	BatchSize  int   // 0 means the configured default
}

// Namespace returns the collection the query addresses.
func (s *Spec) Namespace() store.Namespace {
	return store.Namespace{Database: s.Database, Collection: s.Collection}
}

// IsAggregate reports whether the query runs as a pipeline.
func (s *Spec) IsAggregate() bool {
	return s.Aggregate || len(s.Pipeline) > 0
}

// Limits are the server-side bounds a Spec is checked against.
type Limits struct {
	DefaultBatchSize int
	MaxBatchSize     int
	MaxLimit         int64 // 0 means uncapped
	CoerceObjectIDs  bool  // turn 24-hex _id strings into ObjectIDs
}

// DefaultLimits mirrors the default stream configuration.
func DefaultLimits() Limits {
	return Limits{
		DefaultBatchSize: 10,
		MaxBatchSize:     100,
		CoerceObjectIDs:  true,
	}
}
