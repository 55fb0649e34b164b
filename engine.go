package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexander-irbis/jsonrpc-client-go/internal/weakselect"
	"github.com/alexander-irbis/jsonrpc-client-go/wire"
	"golang.org/x/sync/errgroup"
)

// serverPollInterval paces repeated ServerHandler.Poll calls when a handler
// reports PollWorking with no blocking point of its own to wait on.
const serverPollInterval = 50 * time.Millisecond

type outgoingKind int

const (
	outgoingCall outgoingKind = iota
	outgoingNotification
	outgoingResponse
)

type outgoingMessage struct {
	kind       outgoingKind
	method     string
	params     any
	completion chan callResult
	notifyDone chan error
	raw        json.RawMessage
}

type callResult struct {
	result json.RawMessage
	err    error
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Handler dispatches inbound server-originated requests/notifications.
	// If nil, a fresh empty Router is used.
	Handler ServerHandler
	// IDs generates outgoing request ids. If nil, NewIDGenerator() is used.
	IDs IDGenerator
	// Executor is handed to the default Router created when Handler is nil,
	// which spawns its method-dispatch goroutines with it. If nil,
	// DefaultExecutor is used.
	Executor Executor
	// Logger receives structured engine logs. If nil, logging is disabled.
	Logger *slog.Logger
}

// Engine is the multiplexer: it owns the transport, the pending-call
// table, the inbound fan-in of outgoing messages, and the shutdown state.
// It is driven by calling Run, which blocks until the transport ends, the
// last Handle is closed and all pending calls resolved, or a fatal error
// occurs.
type Engine struct {
	transport Transport
	handler   ServerHandler
	idgen     IDGenerator
	executor  Executor
	logger    *slog.Logger

	outgoing        chan outgoingMessage
	outgoingCloseMu sync.Once
	serverResponses chan outgoingMessage
	merged          <-chan outgoingMessage

	pendingMu sync.Mutex
	pending   map[string]chan callResult

	done     chan struct{}
	doneOnce sync.Once
	fatalErr error

	refs        atomic.Int64
	selfClosing atomic.Bool
}

// NewEngine creates an Engine over transport. Call Run to drive it and
// Handle to obtain a producer-side handle.
func NewEngine(transport Transport, opts EngineOptions) *Engine {
	handler := opts.Handler
	if handler == nil {
		handler = NewRouter(opts.Executor)
	}
	ids := opts.IDs
	if ids == nil {
		ids = NewIDGenerator()
	}
	executor := opts.Executor
	if executor == nil {
		executor = DefaultExecutor
	}

	outgoing := make(chan outgoingMessage)
	serverResponses := make(chan outgoingMessage)

	e := &Engine{
		transport:       transport,
		handler:         handler,
		idgen:           ids,
		executor:        executor,
		logger:          resolveLogger(opts.Logger),
		outgoing:        outgoing,
		serverResponses: serverResponses,
		merged:          weakselect.Merge[outgoingMessage](outgoing, serverResponses),
		pending:         make(map[string]chan callResult),
		done:            make(chan struct{}),
	}
	return e
}

// Handle returns a new producer-side Handle, incrementing the engine's
// outgoing-queue reference count. The outgoing queue is considered
// exhausted, and the engine begins shutting down, only once every Handle
// obtained this way (and every clone of one) has been closed.
func (e *Engine) Handle() *Handle {
	e.refs.Add(1)
	return &Handle{engine: e, refs: &e.refs}
}

// Run drives the engine until the transport ends, the outgoing queue is
// exhausted and drained, the ServerHandler signals completion, or a fatal
// error occurs. Its result is the fatal error if one was set, else nil.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		defer cancel()
		return e.readLoop(gctx)
	})
	group.Go(func() error {
		defer cancel()
		return e.outgoingLoop(gctx)
	})
	group.Go(func() error {
		defer cancel()
		return e.pollServerLoop(gctx)
	})
	group.Go(func() error {
		// transport.ReadLine has no context awareness of its own: once any
		// other loop ends, wake readLoop's blocked read by closing the
		// transport out from under it rather than leaving Run hang until a
		// peer happens to send another line.
		<-gctx.Done()
		e.selfClosing.Store(true)
		_ = e.transport.Close()
		return nil
	})

	err := group.Wait()
	e.finish(err)
	return e.fatalErr
}

// readLoop implements the "drain source" stage (spec.md §4.5 step 3): it
// reads framed messages and dispatches parsed Responses by id, handing
// parsed Requests to the ServerHandler. A clean source end (io.EOF) is
// graceful; any other read error is fatal.
func (e *Engine) readLoop(ctx context.Context) error {
	for {
		line, err := e.transport.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || e.selfClosing.Load() {
				return nil
			}
			return &TransportError{Cause: err}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		incoming, err := wire.ParseIncoming([]byte(line))
		if err != nil {
			e.logger.Warn("failed to parse incoming message", slog.Any("error", err))
			continue
		}

		if incoming.IsResponse {
			if err := e.dispatchResponse(incoming.Response, incoming.Version); err != nil {
				return err
			}
			continue
		}

		e.handler.ProcessRequest(ctx, incoming.Request, &engineResponseSink{engine: e})
	}
}

// dispatchResponse implements spec.md §4.5.1. Version checking precedes
// demux; a bad version is returned as a fatal error for the caller to
// propagate.
func (e *Engine) dispatchResponse(resp wire.Response, version string) error {
	if version != wire.Version {
		return ErrInvalidVersion
	}

	e.pendingMu.Lock()
	ch, ok := e.pending[resp.ID.Key()]
	if ok {
		delete(e.pending, resp.ID.Key())
	}
	e.pendingMu.Unlock()

	if !ok {
		e.logger.Warn("response for unknown or already-resolved id", slog.String("id", resp.ID.String()))
		return nil
	}

	if resp.IsSuccess() {
		ch <- callResult{result: resp.Result}
	} else {
		ch <- callResult{err: &ResponseError{ID: resp.ID, Err: resp.Err}}
	}
	return nil
}

// outgoingLoop implements the "drain outgoing" stage (spec.md §4.5 step 4)
// via the weak-select merged channel (spec.md §4.5.4): it ends exactly
// when the client-handle channel ends, regardless of server-response
// traffic.
func (e *Engine) outgoingLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-e.merged:
			if !ok {
				return nil
			}
			if err := e.handleOutgoing(msg); err != nil {
				return err
			}
		}
	}
}

// handleOutgoing implements spec.md §4.5.2.
func (e *Engine) handleOutgoing(msg outgoingMessage) error {
	switch msg.kind {
	case outgoingCall:
		id := e.idgen.Next()
		raw, err := wire.SerializeCall(msg.method, msg.params, id)
		if err != nil {
			msg.completion <- callResult{err: &SerializeError{Cause: err}}
			return nil
		}

		e.pendingMu.Lock()
		e.pending[id.Key()] = msg.completion
		e.pendingMu.Unlock()

		if err := e.transport.WriteLine(string(raw)); err != nil {
			e.pendingMu.Lock()
			delete(e.pending, id.Key())
			e.pendingMu.Unlock()
			transportErr := &TransportError{Cause: err}
			msg.completion <- callResult{err: transportErr}
			return transportErr
		}
		return nil

	case outgoingNotification:
		raw, err := wire.SerializeNotification(msg.method, msg.params)
		if err != nil {
			msg.notifyDone <- &SerializeError{Cause: err}
			return nil
		}
		if err := e.transport.WriteLine(string(raw)); err != nil {
			transportErr := &TransportError{Cause: err}
			msg.notifyDone <- transportErr
			return transportErr
		}
		msg.notifyDone <- nil
		return nil

	case outgoingResponse:
		if err := e.transport.WriteLine(string(msg.raw)); err != nil {
			return &TransportError{Cause: err}
		}
		return nil
	}
	return nil
}

// pollServerLoop implements the "drive server" stage (spec.md §4.5 step 2):
// it invokes ServerHandler.Poll until it reports completion or error,
// pacing repeated calls so a handler with no blocking point of its own
// does not spin the loop.
func (e *Engine) pollServerLoop(ctx context.Context) error {
	for {
		status, err := e.handler.Poll(ctx)
		if err != nil {
			return err
		}
		if status == PollFinished {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(serverPollInterval):
		}
	}
}

// finish implements the shutdown protocol (spec.md §4.5.3): abandoning the
// pending-call table delivers Shutdown to every awaiting caller.
func (e *Engine) finish(err error) {
	e.doneOnce.Do(func() {
		e.fatalErr = err
		close(e.done)

		e.pendingMu.Lock()
		pending := e.pending
		e.pending = map[string]chan callResult{}
		e.pendingMu.Unlock()

		for _, ch := range pending {
			ch <- callResult{err: ErrShutdown}
		}
	})
}

// closeOutgoing closes the client-handle outgoing channel exactly once,
// ending the weak-select merged stream per spec.md §4.5.4.
func (e *Engine) closeOutgoing() {
	e.outgoingCloseMu.Do(func() {
		close(e.outgoing)
	})
}

// submit enqueues msg onto the outgoing queue, respecting ctx cancellation
// and engine shutdown.
func (e *Engine) submit(ctx context.Context, msg outgoingMessage) error {
	select {
	case <-e.done:
		return ErrShutdown
	default:
	}

	select {
	case e.outgoing <- msg:
		return nil
	case <-e.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// engineResponseSink routes a ServerHandler's Response messages onto the
// engine's secondary (server-response) outgoing channel.
type engineResponseSink struct {
	engine *Engine
}

func (s *engineResponseSink) SendResponse(raw json.RawMessage) {
	msg := outgoingMessage{kind: outgoingResponse, raw: raw}
	select {
	case s.engine.serverResponses <- msg:
	case <-s.engine.done:
	}
}
