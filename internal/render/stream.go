package render

import (
	"fmt"

	"github.com/gookit/color"

	"github.com/IngaleChinmay04/MongoNexus/internal/stream"
)

// StreamSummary prints the outcome of a streaming session.
func (p *Printer) StreamSummary(state stream.State, emitted int64, sessionID string) {
	var c color.Color
	switch state {
	case stream.StateCompleted:
		c = color.Green
	case stream.StateCancelled:
		c = color.Yellow
	default:
		c = color.Red
	}
	fmt.Fprintf(p.w, "session %s %s: %d documents\n", sessionID, p.paint(c, state.String()), emitted)
}
