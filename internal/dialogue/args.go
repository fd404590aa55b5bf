package dialogue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArguments parses a tool-call argument payload into a map. The provider
// occasionally emits two concatenated JSON objects for one call; a streaming
// decoder stops at the end of the first well-formed object, so the duplicate
// is ignored rather than failing the parse.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}
	return args, nil
}
