// Package wire implements the JSON-RPC 2.0 message shapes shared by the
// engine and its server-side dispatcher: request ids, the three outbound
// shapes (call, notification, response), and the incoming-message parser.
package wire

import (
	"encoding/json"
	"fmt"
)

// ID represents a JSON-RPC request id, which the spec allows to be either a
// string or a number. Exactly one of the two is set; the zero value is the
// unset id carried by notifications.
type ID struct {
	str *string
	num *int64
}

// NewStringID creates a string request id.
func NewStringID(value string) ID {
	return ID{str: &value}
}

// NewIntID creates an integer request id.
func NewIntID(value int64) ID {
	return ID{num: &value}
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id.str == nil && id.num == nil
}

// Key returns a stable string key suitable for map lookups.
func (id ID) Key() string {
	switch {
	case id.str != nil:
		return "s:" + *id.str
	case id.num != nil:
		return fmt.Sprintf("i:%d", *id.num)
	default:
		return ""
	}
}

// String returns a printable representation.
func (id ID) String() string {
	switch {
	case id.str != nil:
		return *id.str
	case id.num != nil:
		return fmt.Sprintf("%d", *id.num)
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.str != nil:
		return json.Marshal(*id.str)
	case id.num != nil:
		return json.Marshal(*id.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ID{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.str, id.num = &s, nil
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.num, id.str = &n, nil
		return nil
	}

	return fmt.Errorf("wire: invalid request id %s", string(data))
}
