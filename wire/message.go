package wire

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC protocol version this module speaks.
const Version = "2.0"

// Request is an inbound or outbound JSON-RPC request. A zero ID marks it as
// a notification: JSON-RPC notifications are requests with the id field
// omitted, and the engine dispatches both through the same Request path.
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

// IsNotification reports whether this request carries no id.
func (r Request) IsNotification() bool {
	return r.ID.IsZero()
}

// ResponseError is the JSON-RPC error object nested inside a Failure
// response.
type ResponseError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// Response is a parsed reply to a Call: either Success (Result set) or
// Failure (Err set), never both.
type Response struct {
	ID     ID
	Result json.RawMessage
	Err    *ResponseError
}

// IsSuccess reports whether this is a Success response.
func (r Response) IsSuccess() bool {
	return r.Err == nil
}

// wireRequest/wireResponse are the on-the-wire JSON shapes; Request and
// Response above are the values application code works with.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// SerializeCall builds the wire bytes for a Call: {jsonrpc, method, params?, id}.
// params is normalized per NormalizeParams before encoding.
func SerializeCall(method string, params any, id ID) (json.RawMessage, error) {
	normalized, err := NormalizeParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRequest{JSONRPC: Version, Method: method, Params: normalized, ID: &id})
}

// SerializeNotification builds the wire bytes for a Notification: identical
// to a Call but with no id field.
func SerializeNotification(method string, params any) (json.RawMessage, error) {
	normalized, err := NormalizeParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRequest{JSONRPC: Version, Method: method, Params: normalized})
}

// SerializeSuccess builds a successful server-originated response.
func SerializeSuccess(id ID, result any) (json.RawMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireResponse{JSONRPC: Version, ID: id, Result: raw})
}

// SerializeFailure builds a failed server-originated response.
func SerializeFailure(id ID, code int64, message string, data json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(wireResponse{JSONRPC: Version, ID: id, Error: &ResponseError{Code: code, Message: message, Data: data}})
}

// NormalizeParams maps an arbitrary params value onto the JSON-RPC params
// shapes: null becomes absent, an array stays positional, an object stays
// named, and any other scalar is wrapped in a single-element positional
// array. Normalization is idempotent: re-normalizing an already-normalized
// value (nil, a JSON array, or a JSON object) returns it unchanged.
func NormalizeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}

	var data json.RawMessage
	if raw, ok := params.(json.RawMessage); ok {
		data = raw
	} else {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, &SerializeError{Cause: err}
		}
		data = encoded
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, &SerializeError{Cause: err}
	}

	switch generic.(type) {
	case nil:
		return nil, nil
	case []any, map[string]any:
		return data, nil
	default:
		wrapped, err := json.Marshal([]any{generic})
		if err != nil {
			return nil, &SerializeError{Cause: err}
		}
		return wrapped, nil
	}
}

// incomingEnvelope is decoded once per line; its field presence decides
// whether the payload parses as a Response or a Request (ParseIncoming
// tries Response first since only Response carries "result" or "error").
type incomingEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *ResponseError  `json:"error"`
}

// Incoming is the tagged variant produced by ParseIncoming.
type Incoming struct {
	IsResponse bool
	Version    string
	Response   Response
	Request    Request
}

// ParseIncoming parses one framed JSON-RPC message. It tries the Response
// shape first (the presence of "result" or "error" is the disambiguator),
// falling back to Request. Version checking is deferred to the caller: a
// Response's Version field is populated as parsed, even if not "2.0", so
// the engine can stop with InvalidVersion as its fatal error rather than
// silently dropping the message.
func ParseIncoming(data []byte) (Incoming, error) {
	var env incomingEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Incoming{}, &DeserializeError{Cause: err}
	}

	if len(env.Result) > 0 || env.Error != nil {
		id, err := parseID(env.ID)
		if err != nil {
			return Incoming{}, &DeserializeError{Cause: err}
		}
		return Incoming{
			IsResponse: true,
			Version:    env.JSONRPC,
			Response:   Response{ID: id, Result: env.Result, Err: env.Error},
		}, nil
	}

	if env.Method != "" {
		var id ID
		if len(env.ID) > 0 {
			parsed, err := parseID(env.ID)
			if err != nil {
				return Incoming{}, &DeserializeError{Cause: err}
			}
			id = parsed
		}
		return Incoming{Request: Request{ID: id, Method: env.Method, Params: env.Params}}, nil
	}

	return Incoming{}, &DeserializeError{Cause: fmt.Errorf("unrecognized json-rpc message shape")}
}

func parseID(raw json.RawMessage) (ID, error) {
	var id ID
	if len(raw) == 0 {
		return id, nil
	}
	if err := id.UnmarshalJSON(raw); err != nil {
		return ID{}, err
	}
	return id, nil
}
