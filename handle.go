package jsonrpc

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// Handle is a cheaply clonable producer-side interface to an Engine. Call
// submission order from one Handle is preserved end-to-end up to the sink;
// ordering between distinct Handles, or between their clones, is
// unspecified.
type Handle struct {
	engine *Engine
	refs   *atomic.Int64
}

// Clone returns a new Handle sharing this one's outgoing queue. The
// underlying queue is not considered exhausted until every clone has been
// closed.
func (h *Handle) Clone() *Handle {
	h.refs.Add(1)
	return &Handle{engine: h.engine, refs: h.refs}
}

// Close releases this Handle. Once every clone of the original Handle
// returned by Engine.Handle has been closed, the engine's outgoing queue
// is closed, which the engine observes as exhaustion (spec.md §4.5.3) and
// begins shutting down.
func (h *Handle) Close() {
	if h.refs.Add(-1) == 0 {
		h.engine.closeOutgoing()
	}
}

// Call serializes params, submits a Call message, and blocks until the
// engine delivers a reply or the call fails. If result is non-nil, the
// reply's result is decoded into it.
func (h *Handle) Call(ctx context.Context, method string, params any, result any) error {
	completion := make(chan callResult, 1)
	msg := outgoingMessage{kind: outgoingCall, method: method, params: params, completion: completion}

	if err := h.engine.submit(ctx, msg); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.engine.done:
		return ErrShutdown
	case res := <-completion:
		if res.err != nil {
			return res.err
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(res.result, result); err != nil {
			return &DeserializeError{Cause: err}
		}
		return nil
	}
}

// Notify serializes params and submits a Notification message. It returns
// once the engine has written the message to the sink (or failed to), not
// once a remote peer has received it — there is no reply to a
// notification.
func (h *Handle) Notify(ctx context.Context, method string, params any) error {
	notifyDone := make(chan error, 1)
	msg := outgoingMessage{kind: outgoingNotification, method: method, params: params, notifyDone: notifyDone}

	if err := h.engine.submit(ctx, msg); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.engine.done:
		return ErrShutdown
	case err := <-notifyDone:
		return err
	}
}
