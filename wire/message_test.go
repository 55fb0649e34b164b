package wire

import (
	"encoding/json"
	"testing"
)

func TestSerializeCall(t *testing.T) {
	raw, err := SerializeCall("add", []any{1, 2}, NewIntID(1))
	if err != nil {
		t.Fatalf("SerializeCall: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["jsonrpc"] != Version {
		t.Fatalf("jsonrpc = %v, want %s", got["jsonrpc"], Version)
	}
	if got["method"] != "add" {
		t.Fatalf("method = %v, want add", got["method"])
	}
	if got["id"] != float64(1) {
		t.Fatalf("id = %v, want 1", got["id"])
	}
	params, ok := got["params"].([]any)
	if !ok || len(params) != 2 {
		t.Fatalf("params = %v, want [1 2]", got["params"])
	}
}

func TestSerializeNotificationHasNoID(t *testing.T) {
	raw, err := SerializeNotification("ping", nil)
	if err != nil {
		t.Fatalf("SerializeNotification: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, present := got["id"]; present {
		t.Fatalf("notification must not carry an id, got %v", got["id"])
	}
	if _, present := got["params"]; present {
		t.Fatalf("nil params must be omitted, got %v", got["params"])
	}
}

func TestNormalizeParams(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string // "" means absent (nil)
	}{
		{"nil", nil, ""},
		{"array", []any{1, 2}, "[1,2]"},
		{"object", map[string]any{"a": 1}, `{"a":1}`},
		{"string scalar", "x", `["x"]`},
		{"number scalar", 5, "[5]"},
		{"bool scalar", true, "[true]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeParams(tt.input)
			if err != nil {
				t.Fatalf("NormalizeParams: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Fatalf("NormalizeParams(%v) = %s, want absent", tt.input, got)
				}
				return
			}
			if string(got) != tt.want {
				t.Fatalf("NormalizeParams(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeParamsIdempotent(t *testing.T) {
	inputs := []any{nil, []any{1, 2}, map[string]any{"a": 1}, "x", 5, true}

	for _, input := range inputs {
		first, err := NormalizeParams(input)
		if err != nil {
			t.Fatalf("NormalizeParams(%v): %v", input, err)
		}

		var second json.RawMessage
		if first == nil {
			second, err = NormalizeParams(nil)
		} else {
			var reencoded any
			if err := json.Unmarshal(first, &reencoded); err != nil {
				t.Fatalf("Unmarshal(%s): %v", first, err)
			}
			second, err = NormalizeParams(reencoded)
		}
		if err != nil {
			t.Fatalf("NormalizeParams re-applied: %v", err)
		}

		if string(first) != string(second) {
			t.Fatalf("normalize(normalize(%v)) = %s, want %s", input, second, first)
		}
	}
}

func TestParseIncomingResponseBeforeRequest(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"result":3}`)
	incoming, err := ParseIncoming(raw)
	if err != nil {
		t.Fatalf("ParseIncoming: %v", err)
	}
	if !incoming.IsResponse {
		t.Fatalf("expected a Response, got a Request")
	}
	if !incoming.Response.IsSuccess() {
		t.Fatalf("expected a Success response")
	}
	if string(incoming.Response.Result) != "3" {
		t.Fatalf("result = %s, want 3", incoming.Response.Result)
	}
}

func TestParseIncomingFailureResponse(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`)
	incoming, err := ParseIncoming(raw)
	if err != nil {
		t.Fatalf("ParseIncoming: %v", err)
	}
	if !incoming.IsResponse || incoming.Response.IsSuccess() {
		t.Fatalf("expected a Failure response")
	}
	if incoming.Response.Err.Code != -32601 {
		t.Fatalf("code = %d, want -32601", incoming.Response.Err.Code)
	}
}

func TestParseIncomingRequest(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xabc","result":{}}}`)
	incoming, err := ParseIncoming(raw)
	if err != nil {
		t.Fatalf("ParseIncoming: %v", err)
	}
	if incoming.IsResponse {
		t.Fatalf("expected a Request (notification)")
	}
	if !incoming.Request.IsNotification() {
		t.Fatalf("request with no id should be a notification")
	}
	if incoming.Request.Method != "eth_subscription" {
		t.Fatalf("method = %s, want eth_subscription", incoming.Request.Method)
	}
}

func TestParseIncomingUnrecognized(t *testing.T) {
	if _, err := ParseIncoming([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Fatalf("expected DeserializeError for a shape with neither result/error nor method")
	}
}

func TestParseIncomingCallRoundTrip(t *testing.T) {
	raw, err := SerializeCall("add", []any{1, 2}, NewIntID(7))
	if err != nil {
		t.Fatalf("SerializeCall: %v", err)
	}

	incoming, err := ParseIncoming(raw)
	if err != nil {
		t.Fatalf("ParseIncoming: %v", err)
	}
	if incoming.IsResponse {
		t.Fatalf("a Call must parse back as a Request")
	}
	if incoming.Request.Method != "add" {
		t.Fatalf("method = %s, want add", incoming.Request.Method)
	}
	if incoming.Request.ID.Key() != NewIntID(7).Key() {
		t.Fatalf("id = %s, want %s", incoming.Request.ID.Key(), NewIntID(7).Key())
	}

	var params []int
	if err := json.Unmarshal(incoming.Request.Params, &params); err != nil {
		t.Fatalf("Unmarshal params: %v", err)
	}
	if len(params) != 2 || params[0] != 1 || params[1] != 2 {
		t.Fatalf("params = %v, want [1 2]", params)
	}
}
