package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	jsonrpc "github.com/alexander-irbis/jsonrpc-client-go"
	"github.com/alexander-irbis/jsonrpc-client-go/internal/weakselect"
)

type subscriberMsgKind int

const (
	msgNewSubscriber subscriberMsgKind = iota
	msgRemoveSubscriber
)

// subscriberMsg is the control-channel message a Subscriber or Subscription
// sends to a notificationHandler.
type subscriberMsg struct {
	kind   subscriberMsgKind
	id     SubscriptionId
	dataCh chan json.RawMessage // only set for msgNewSubscriber
}

// notificationPayload is the {subscription, result} shape a notification's
// params are parsed into (spec.md §4.6 step 1).
type notificationPayload struct {
	Subscription SubscriptionId  `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type handlerEvent struct {
	isData bool
	data   notificationPayload
	ctrl   subscriberMsg
}

// notificationHandler is the single task per (Subscriber, notification
// method): it demuxes one inbound notification stream by subscription id
// to many local subscribers, issues the unsubscribe RPC for each one that
// departs, and shuts down when the last one has gone. Grounded in the original jsonrpc-client-pubsub crate's
// NotificationHandler.
type notificationHandler struct {
	method            string
	unsubMethod       string
	unsubscribeParams UnsubscribeParams

	handle *jsonrpc.Handle
	router *jsonrpc.Router
	logger *slog.Logger

	data    chan notificationPayload
	control chan subscriberMsg

	subscribers map[string]chan json.RawMessage

	onDone func()

	// stop signals the data/control forwarding goroutines to exit once run
	// returns, so a terminated handler reclaims them instead of leaking them
	// blocked forever on h.data/h.control (which nothing closes — Subscriber
	// keeps sending into them for as long as the Subscriber itself lives).
	stop chan struct{}
}

// run drives the handler until the subscriber table empties. The merged
// stream (spec.md §4.7) follows the weak-select rule: data governs
// termination, control is best-effort, so a Subscriber dropping its cached
// control reference never by itself kills the handler. At most one
// side-effect (a fan-out send or an unsubscribe call) is ever in flight:
// the loop body runs each to completion before pulling the next event.
func (h *notificationHandler) run() {
	h.stop = make(chan struct{})
	defer h.shutdown()

	dataEvents := make(chan handlerEvent)
	go func() {
		defer close(dataEvents)
		for {
			select {
			case payload, ok := <-h.data:
				if !ok {
					return
				}
				select {
				case dataEvents <- handlerEvent{isData: true, data: payload}:
				case <-h.stop:
					return
				}
			case <-h.stop:
				return
			}
		}
	}()

	ctrlEvents := make(chan handlerEvent)
	go func() {
		defer close(ctrlEvents)
		for {
			select {
			case msg, ok := <-h.control:
				if !ok {
					return
				}
				select {
				case ctrlEvents <- handlerEvent{ctrl: msg}:
				case <-h.stop:
					return
				}
			case <-h.stop:
				return
			}
		}
	}()

	merged := weakselect.Merge[handlerEvent](dataEvents, ctrlEvents)

	for event := range merged {
		var done bool
		if event.isData {
			h.handleMessage(event.data)
		} else {
			done = h.handleControl(event.ctrl)
		}
		if done {
			return
		}
	}
}

func (h *notificationHandler) handleMessage(payload notificationPayload) {
	ch, ok := h.subscribers[payload.Subscription.Key()]
	if !ok {
		h.logger.Warn("notification for unknown subscription",
			slog.String("method", h.method), slog.String("id", payload.Subscription.String()))
		return
	}
	ch <- payload.Result
}

// handleControl applies one control message and reports whether the
// subscriber table is now empty, in which case the handler should shut
// down.
func (h *notificationHandler) handleControl(msg subscriberMsg) bool {
	switch msg.kind {
	case msgNewSubscriber:
		h.subscribers[msg.id.Key()] = msg.dataCh
		return false

	case msgRemoveSubscriber:
		if ch, ok := h.subscribers[msg.id.Key()]; ok {
			close(ch)
		}
		delete(h.subscribers, msg.id.Key())

		var params any = []any{}
		if h.unsubscribeParams != nil {
			params = h.unsubscribeParams(msg.id)
		}
		if err := h.handle.Call(context.Background(), h.unsubMethod, params, nil); err != nil {
			h.logger.Warn("unsubscribe call failed",
				slog.String("method", h.unsubMethod), slog.Any("error", err))
		}
		return len(h.subscribers) == 0
	}
	return false
}

func (h *notificationHandler) shutdown() {
	close(h.stop)
	h.router.RemoveNotification(h.method)
	if h.onDone != nil {
		h.onDone()
	}
}
