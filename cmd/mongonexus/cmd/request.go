package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/IngaleChinmay04/MongoNexus/internal/wire"
)

// buildRequest assembles a request body from flag values and decodes it
// with the same rules the HTTP API applies. Document flags hold raw
// (Extended) JSON; empty ones are left out.
func buildRequest(fields map[string]interface{}, docs map[string]string) (*wire.Request, error) {
	body := make(map[string]interface{}, len(fields)+len(docs))
	for k, v := range fields {
		body[k] = v
	}
	for k, v := range docs {
		if v == "" {
			continue
		}
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("--%s is not valid JSON", k)
		}
		body[k] = json.RawMessage(v)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return wire.DecodeRequest(raw)
}
