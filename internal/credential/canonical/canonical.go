// Package canonical produces the deterministic byte form that credentials and
// presentations are signed over: JSON with object keys sorted at every depth
// and the named top-level fields removed.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal serializes v, drops the omitted top-level keys, and re-serializes
// with sorted keys. Numbers keep their literal text.
func Marshal(v any, omit ...string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if obj, ok := generic.(map[string]any); ok {
		for _, k := range omit {
			delete(obj, k)
		}
	} else if len(omit) > 0 {
		return nil, fmt.Errorf("canonical: cannot omit fields from %T", generic)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
