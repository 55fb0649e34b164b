package jsonrpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alexander-irbis/jsonrpc-client-go/wire"
)

// PollStatus is the ternary result of ServerHandler.Poll.
type PollStatus int

const (
	// PollWorking means the handler has more internal work and should be
	// polled again.
	PollWorking PollStatus = iota
	// PollFinished means the handler expects no further work; the Engine
	// interprets this as a trigger to begin shutting down.
	PollFinished
)

// ResponseSink is the Engine's secondary outgoing queue: the destination
// for Response messages a ServerHandler produces while dispatching an
// inbound Request.
type ResponseSink interface {
	SendResponse(raw json.RawMessage)
}

// ServerHandler is the pluggable dispatcher for inbound server-originated
// requests and notifications. It is an external collaborator: the Engine
// only calls ProcessRequest and Poll, never inspects a handler's internals.
type ServerHandler interface {
	// ProcessRequest dispatches one inbound Request (or notification, if
	// req.IsNotification()). It may enqueue zero or more Response messages
	// onto sink asynchronously; it must not block the caller.
	ProcessRequest(ctx context.Context, req wire.Request, sink ResponseSink)
	// Poll drives the handler's internal tasks. PollFinished tells the
	// Engine no further work is expected from this handler.
	Poll(ctx context.Context) (PollStatus, error)
}

// MethodFunc handles one inbound RPC method call and returns its result.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationFunc handles one inbound notification. It has no reply.
type NotificationFunc func(params json.RawMessage)

// Router is the default ServerHandler: a method-name keyed dispatch table
// safe for concurrent Add/Remove, grounded in the original jsonrpc-client's
// Server/ServerHandle (add/remove routes by method name). The pubsub layer
// uses a Router to register and deregister its per-subscription
// notification routes at runtime.
type Router struct {
	mu            sync.RWMutex
	methods       map[string]MethodFunc
	notifications map[string]NotificationFunc
	executor      Executor
}

// NewRouter returns an empty Router. executor spawns the goroutine backing
// each dispatched method call; pass nil to use DefaultExecutor.
func NewRouter(executor Executor) *Router {
	if executor == nil {
		executor = DefaultExecutor
	}
	return &Router{
		methods:       make(map[string]MethodFunc),
		notifications: make(map[string]NotificationFunc),
		executor:      executor,
	}
}

// AddMethod registers fn to serve inbound calls to name, replacing any
// existing route.
func (r *Router) AddMethod(name string, fn MethodFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = fn
}

// RemoveMethod deregisters the route for name, if any.
func (r *Router) RemoveMethod(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, name)
}

// AddNotification registers fn to serve inbound notifications for name,
// replacing any existing route.
func (r *Router) AddNotification(name string, fn NotificationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[name] = fn
}

// RemoveNotification deregisters the notification route for name, if any.
func (r *Router) RemoveNotification(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notifications, name)
}

// ProcessRequest implements ServerHandler.
func (r *Router) ProcessRequest(ctx context.Context, req wire.Request, sink ResponseSink) {
	if req.IsNotification() {
		r.mu.RLock()
		fn := r.notifications[req.Method]
		r.mu.RUnlock()
		if fn != nil {
			fn(req.Params)
		}
		return
	}

	r.mu.RLock()
	fn := r.methods[req.Method]
	r.mu.RUnlock()

	if fn == nil {
		raw, err := wire.SerializeFailure(req.ID, -32601, "method not found", nil)
		if err == nil {
			sink.SendResponse(raw)
		}
		return
	}

	r.executor.Go(func() {
		result, callErr := fn(ctx, req.Params)
		var raw json.RawMessage
		var err error
		if callErr != nil {
			raw, err = wire.SerializeFailure(req.ID, -32000, callErr.Error(), nil)
		} else {
			raw, err = wire.SerializeSuccess(req.ID, result)
		}
		if err != nil {
			return
		}
		sink.SendResponse(raw)
	})
}

// Poll implements ServerHandler. A Router never signals completion on its
// own; callers that want the engine to shut down on handler exhaustion
// should wrap a Router in a ServerHandler whose Poll observes that
// condition.
func (r *Router) Poll(ctx context.Context) (PollStatus, error) {
	return PollWorking, nil
}
