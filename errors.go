package jsonrpc

import (
	"errors"
	"fmt"

	"github.com/alexander-irbis/jsonrpc-client-go/wire"
)

// ErrShutdown is returned by Handle methods once the engine has shut down,
// and is the error delivered to any call still pending at that point.
var ErrShutdown = errors.New("jsonrpc: client is shutting down")

// ErrInvalidVersion is returned when a parsed Response carries a jsonrpc
// version field other than "2.0".
var ErrInvalidVersion = errors.New("jsonrpc: invalid jsonrpc version in response")

// TransportError wraps a failure reading from or writing to the transport.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jsonrpc: transport: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// SerializeError wraps a failure to encode an outgoing message.
type SerializeError struct {
	Cause error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("jsonrpc: serialize: %s", e.Cause)
}

func (e *SerializeError) Unwrap() error {
	return e.Cause
}

// DeserializeError wraps a failure to decode an incoming message.
type DeserializeError struct {
	Cause error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("jsonrpc: deserialize: %s", e.Cause)
}

func (e *DeserializeError) Unwrap() error {
	return e.Cause
}

// ResponseError is the error returned by Call when the server replies with
// a JSON-RPC Failure response. It wraps the wire error object verbatim.
type ResponseError struct {
	ID  wire.ID
	Err *wire.ResponseError
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc: call %s failed: %s", e.ID, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
