package jsonrpc_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	jsonrpc "github.com/alexander-irbis/jsonrpc-client-go"
	"github.com/alexander-irbis/jsonrpc-client-go/jsonrpctest"
)

func mustExtractID(t *testing.T, line string, out *int) {
	t.Helper()
	var envelope struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal([]byte(line), &envelope); err != nil {
		t.Fatalf("Unmarshal written line %q: %v", line, err)
	}
	*out = envelope.ID
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func newEngine(t *testing.T, transcript []jsonrpctest.TranscriptEntry) (*jsonrpc.Engine, *jsonrpc.Handle, chan error) {
	t.Helper()
	replay := jsonrpctest.NewReplayTransport(transcript)
	engine := jsonrpc.NewEngine(replay, jsonrpc.EngineOptions{})
	handle := engine.Handle()

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(context.Background()) }()

	return engine, handle, runErr
}

func TestCallResolvesWithResult(t *testing.T) {
	_, handle, _ := newEngine(t, []jsonrpctest.TranscriptEntry{
		{Direction: jsonrpctest.Write, Line: `{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1}`},
		{Direction: jsonrpctest.Read, Line: `{"jsonrpc":"2.0","id":1,"result":3}`},
	})

	var sum int
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := handle.Call(ctx, "add", []int{1, 2}, &sum); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if sum != 3 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}

func TestCallResolvesWithJSONRPCError(t *testing.T) {
	_, handle, _ := newEngine(t, []jsonrpctest.TranscriptEntry{
		{Direction: jsonrpctest.Write, Line: `{"jsonrpc":"2.0","method":"oops","id":1}`},
		{Direction: jsonrpctest.Read, Line: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := handle.Call(ctx, "oops", nil, nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var rpcErr *jsonrpc.ResponseError
	if !asResponseError(err, &rpcErr) {
		t.Fatalf("expected *jsonrpc.ResponseError, got %T: %v", err, err)
	}
	if rpcErr.Err.Code != -32601 {
		t.Fatalf("code = %d, want -32601", rpcErr.Err.Code)
	}
}

func TestTwoCallsNoCrosstalkOnOutOfOrderReplies(t *testing.T) {
	ct := jsonrpctest.NewChannelTransport()
	engine := jsonrpc.NewEngine(ct, jsonrpc.EngineOptions{})
	handle := engine.Handle()
	go func() { _ = engine.Run(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type callOutcome struct {
		value string
		err   error
	}
	resultsA := make(chan callOutcome, 1)
	resultsB := make(chan callOutcome, 1)

	go func() {
		var v string
		err := handle.Call(ctx, "a", []any{}, &v)
		resultsA <- callOutcome{v, err}
	}()

	// Wait for A's payload to actually reach the sink before submitting B,
	// so the two submissions have a well-defined order (spec.md §5: order
	// within one Handle is preserved end-to-end up to the sink).
	writtenA := <-ct.Written()
	var idA int
	mustExtractID(t, writtenA, &idA)

	go func() {
		var v string
		err := handle.Call(ctx, "b", []any{}, &v)
		resultsB <- callOutcome{v, err}
	}()
	writtenB := <-ct.Written()
	var idB int
	mustExtractID(t, writtenB, &idB)

	// Reply out of order: B's reply first, then A's.
	ct.Push(`{"jsonrpc":"2.0","id":` + itoa(idB) + `,"result":"B"}`)
	ct.Push(`{"jsonrpc":"2.0","id":` + itoa(idA) + `,"result":"A"}`)

	outcomeA := <-resultsA
	outcomeB := <-resultsB

	if outcomeA.err != nil || outcomeA.value != "A" {
		t.Fatalf("call A = (%q, %v), want (A, nil)", outcomeA.value, outcomeA.err)
	}
	if outcomeB.err != nil || outcomeB.value != "B" {
		t.Fatalf("call B = (%q, %v), want (B, nil)", outcomeB.value, outcomeB.err)
	}

	handle.Close()
}

func TestInvalidVersionIsFatalAndAbandonsCalls(t *testing.T) {
	_, handle, runErr := newEngine(t, []jsonrpctest.TranscriptEntry{
		{Direction: jsonrpctest.Write, Line: `{"jsonrpc":"2.0","method":"m","id":1}`},
		{Direction: jsonrpctest.Read, Line: `{"jsonrpc":"1.0","id":1,"result":0}`},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := handle.Call(ctx, "m", nil, nil)
	if err != jsonrpc.ErrShutdown {
		t.Fatalf("in-flight call should observe Shutdown, got %v", err)
	}

	select {
	case runErr := <-runErr:
		if runErr != jsonrpc.ErrInvalidVersion {
			t.Fatalf("engine terminal error = %v, want ErrInvalidVersion", runErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not terminate")
	}
}

func TestGracefulShutdownAfterHandleClosed(t *testing.T) {
	_, handle, runErr := newEngine(t, nil)

	handle.Close()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("graceful shutdown should be Ok(nil), got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not terminate after Handle.Close")
	}
}

func asResponseError(err error, target **jsonrpc.ResponseError) bool {
	if rpcErr, ok := err.(*jsonrpc.ResponseError); ok {
		*target = rpcErr
		return true
	}
	return false
}
