// Package stream runs one query against a document store and delivers its
// results as an ordered sequence of events: one Metadata, zero or more
// Batch, then exactly one Complete or Error.
package stream

import (
	"go.mongodb.org/mongo-driver/bson"
)

// EventType names an event on the wire.
type EventType string

// Event types.
const (
	EventMetadata EventType = "metadata"
	EventBatch    EventType = "batch"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of a session's output.
type Event interface {
	EventType() EventType
}

// Metadata opens a stream. TotalCount is nil when the count was skipped,
// timed out or failed.
type Metadata struct {
	Database   string `json:"db_name"`
	Collection string `json:"collection_name"`
	TotalCount *int64 `json:"total_count"`
	SessionID  string `json:"session_id"`
}

// Batch carries one non-empty pull from the cursor.
type Batch struct {
	Documents       []bson.D `json:"documents"`
	BatchSize       int      `json:"batch_size"`
	CumulativeCount int64    `json:"cumulative_count"`
}

// Complete ends a successful stream; TotalCount is the number of documents
// actually delivered.
type Complete struct {
	TotalCount int64 `json:"total_count"`
}

// Error ends a failed stream. Message is safe to show to the caller.
type Error struct {
	Message string `json:"message"`
}

func (Metadata) EventType() EventType { return EventMetadata }
func (Batch) EventType() EventType { return EventBatch }
func (Complete) EventType() EventType { return EventComplete }
func (Error) EventType() EventType { return EventError }

// Emitter hands one event to the consumer. A non-nil return means the
// consumer is gone and the session must stop without emitting anything else.
type Emitter func(Event) error
