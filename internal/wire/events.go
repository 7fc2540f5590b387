package wire

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-contrib/sse"

	"github.com/IngaleChinmay04/MongoNexus/internal/stream"
)

type batchPayload struct {
	Documents       []Document `json:"documents"`
	BatchSize       int        `json:"batch_size"`
	CumulativeCount int64      `json:"cumulative_count"`
}

// Payload returns the JSON-ready body of an event.
func Payload(e stream.Event) interface{} {
	if b, ok := e.(stream.Batch); ok {
		return batchPayload{
			Documents:       Documents(b.Documents),
			BatchSize:       b.BatchSize,
			CumulativeCount: b.CumulativeCount,
		}
	}
	return e
}

// EncodeEvent marshals the body of an event.
func EncodeEvent(e stream.Event) ([]byte, error) {
	data, err := json.Marshal(Payload(e))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.EventType(), err)
	}
	return data, nil
}

// WriteSSE writes one event as a Server-Sent Events frame:
// "event:<type>\ndata:<json>\n\n".
func WriteSSE(w io.Writer, e stream.Event) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	return sse.Encode(w, sse.Event{Event: string(e.EventType()), Data: string(data)})
}

// NDJSONWriter writes events as {"event": ..., "data": ...} lines.
type NDJSONWriter struct {
	w io.Writer
}

// NewNDJSONWriter creates an NDJSONWriter over w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w}
}

// Emit writes one event. It satisfies stream.Emitter.
func (n *NDJSONWriter) Emit(e stream.Event) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	line, err := json.Marshal(struct {
		Event stream.EventType `json:"event"`
		Data  json.RawMessage  `json:"data"`
	}{e.EventType(), data})
	if err != nil {
		return err
	}
	_, err = n.w.Write(append(line, '\n'))
	return err
}
