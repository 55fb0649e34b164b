// Package pubsub implements the subscription layer atop a jsonrpc.Handle
// and jsonrpc.Router: a Subscriber issues subscribe RPCs and demultiplexes
// the resulting notification stream across many local Subscriptions by
// subscription id, issuing an unsubscribe RPC for each Subscription that
// departs and stopping the per-method handler once the last one has gone.
//
// This replaces the teacher package's NotificationIterator, which fans
// every notification out to every subscriber uniformly with no per-id
// demux and no unsubscribe. The model here is ported from the original
// jsonrpc-client-pubsub crate's Subscriber/NotificationHandler pair.
package pubsub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	jsonrpc "github.com/alexander-irbis/jsonrpc-client-go"
	"github.com/alexander-irbis/jsonrpc-client-go/wire"
)

// SubscriptionId is the value a subscribe RPC returns: a number or string,
// used to demultiplex a shared notification stream across subscribers.
type SubscriptionId = wire.ID

// UnsubscribeParams builds the parameters sent with the unsubscribe RPC for
// a departing subscription, given its id. The original crate this module
// is grounded on always sends an empty positional array (spec.md §9); pass
// nil to keep that default, or supply a function such as
// `func(id SubscriptionId) any { return []any{id} }` for services that
// expect the id back, which is what most real services expect.
type UnsubscribeParams func(SubscriptionId) any

// controlQueueSize bounds each notificationHandler's control channel. The
// original crate uses an unbounded mpsc channel; Go channels cannot be
// truly unbounded, so a generous fixed size stands in for it. Subscribe and
// Subscription.Unsubscribe never need more than one in-flight message per
// caller, so this is not expected to be a practical limit.
const controlQueueSize = 256

// Subscriber creates subscriptions backed by a shared jsonrpc.Handle and
// jsonrpc.Router. Exactly one notificationHandler runs per distinct
// notification method at a time, regardless of how many Subscribe calls
// share it; handlerFor spawns one lazily and removes it from the registry
// when it shuts down.
type Subscriber struct {
	handle   *jsonrpc.Handle
	router   *jsonrpc.Router
	executor jsonrpc.Executor
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[string]chan subscriberMsg
}

// NewSubscriber returns a Subscriber issuing subscribe/unsubscribe calls
// through handle and registering notification routes on router. executor
// spawns each notificationHandler task; nil uses jsonrpc.DefaultExecutor.
// logger receives route/demux diagnostics; nil disables logging.
func NewSubscriber(handle *jsonrpc.Handle, router *jsonrpc.Router, executor jsonrpc.Executor, logger *slog.Logger) *Subscriber {
	if executor == nil {
		executor = jsonrpc.DefaultExecutor
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Subscriber{
		handle:   handle,
		router:   router,
		executor: executor,
		logger:   logger,
		handlers: make(map[string]chan subscriberMsg),
	}
}

// Subscribe issues subMethod via the Subscriber's Handle, expecting a
// SubscriptionId reply, and returns a Subscription streaming items of type
// T decoded from notifications for notificationMethod tagged with that id.
// Malformed subscribe replies (unparseable as a SubscriptionId) propagate
// as *jsonrpc.DeserializeError.
func Subscribe[T any](ctx context.Context, s *Subscriber, subMethod, unsubMethod, notificationMethod string, bufferSize int, params any, unsubscribeParams UnsubscribeParams) (*Subscription[T], error) {
	control := s.handlerFor(notificationMethod, unsubMethod, unsubscribeParams)

	var rawID json.RawMessage
	if err := s.handle.Call(ctx, subMethod, params, &rawID); err != nil {
		return nil, err
	}

	var id SubscriptionId
	if err := id.UnmarshalJSON(rawID); err != nil {
		return nil, &jsonrpc.DeserializeError{Cause: err}
	}

	if bufferSize <= 0 {
		bufferSize = jsonrpc.DefaultBufferSize
	}
	dataCh := make(chan json.RawMessage, bufferSize)

	control <- subscriberMsg{kind: msgNewSubscriber, id: id, dataCh: dataCh}

	return &Subscription[T]{id: id, data: dataCh, control: control}, nil
}

// handlerFor returns the live control channel for notificationMethod,
// spawning a new notificationHandler (and registering its notification
// route on the Router) if none is currently running.
func (s *Subscriber) handlerFor(notificationMethod, unsubMethod string, unsubscribeParams UnsubscribeParams) chan subscriberMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	if control, ok := s.handlers[notificationMethod]; ok {
		return control
	}

	control := make(chan subscriberMsg, controlQueueSize)
	data := make(chan notificationPayload, controlQueueSize)

	s.router.AddNotification(notificationMethod, func(raw json.RawMessage) {
		var payload notificationPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.logger.Warn("malformed subscription notification", slog.String("method", notificationMethod), slog.Any("error", err))
			return
		}
		select {
		case data <- payload:
		default:
			s.logger.Warn("subscription data channel full, dropping notification", slog.String("method", notificationMethod))
		}
	})

	h := &notificationHandler{
		method:            notificationMethod,
		unsubMethod:       unsubMethod,
		unsubscribeParams: unsubscribeParams,
		handle:            s.handle,
		router:            s.router,
		logger:            s.logger,
		data:              data,
		control:           control,
		subscribers:       make(map[string]chan json.RawMessage),
		onDone: func() {
			s.mu.Lock()
			if s.handlers[notificationMethod] == control {
				delete(s.handlers, notificationMethod)
			}
			s.mu.Unlock()
		},
	}

	s.handlers[notificationMethod] = control
	s.executor.Go(h.run)

	return control
}
