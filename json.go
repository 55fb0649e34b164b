package jsonrpc

import (
	"encoding/json"
	"errors"
)

// RawJSON represents a pre-serialized JSON value, usable directly as Call
// or Notify params to avoid double encoding.
type RawJSON = json.RawMessage

// JSON marshals value into RawJSON. A json.RawMessage value is validated
// and passed through unchanged rather than re-encoded.
func JSON(value any) (RawJSON, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, errors.New("jsonrpc: invalid raw JSON")
		}
		return raw, nil
	}
	return json.Marshal(value)
}

// MustJSON marshals value into RawJSON and panics on error.
func MustJSON(value any) RawJSON {
	raw, err := JSON(value)
	if err != nil {
		panic(err)
	}
	return raw
}
