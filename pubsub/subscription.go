package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	jsonrpc "github.com/alexander-irbis/jsonrpc-client-go"
)

// Subscription is a consumer-side handle to a live subscription: a lazy
// stream of deserialized items of type T, correlated by the subscription
// id a subscribe RPC returned. It exclusively owns its data channel; its
// control channel is a weak back-reference into the owning
// notificationHandler and is never used to keep that handler alive.
type Subscription[T any] struct {
	id      SubscriptionId
	data    chan json.RawMessage
	control chan<- subscriberMsg

	closeOnce sync.Once
}

// ID returns the subscription id assigned by the remote peer.
func (s *Subscription[T]) ID() SubscriptionId {
	return s.id
}

// Next blocks until the next item arrives, the subscription's handler has
// removed it after Unsubscribe (then it returns jsonrpc.ErrShutdown), or
// ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case raw, ok := <-s.data:
		if !ok {
			return zero, jsonrpc.ErrShutdown
		}
		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			return zero, &jsonrpc.DeserializeError{Cause: err}
		}
		return value, nil
	}
}

// Unsubscribe ends the subscription: it is the only unsubscribe trigger
// (spec.md §3's Subscription, translated from Rust's Drop impl into an
// explicit, idempotent method since Go has no deterministic destructors).
// Its notificationHandler issues the unsubscribe RPC for this
// subscription's id, and terminates once no Subscription for its
// notification method remains.
func (s *Subscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		msg := subscriberMsg{kind: msgRemoveSubscriber, id: s.id}
		select {
		case s.control <- msg:
		default:
			// The handler's control channel is bounded; if momentarily full,
			// hand the send to a background task so Unsubscribe never blocks
			// its caller. The control channel is a weak reference: if the
			// handler has already shut down, sending here is simply dropped
			// once that goroutine's send would block forever against a
			// channel nobody drains — acceptable because a shut-down handler
			// has no subscribers left to remove.
			go func() {
				s.control <- msg
			}()
		}
	})
}
