// Package jsonrpc implements the transport-agnostic core of a JSON-RPC 2.0
// client: an Engine that multiplexes request/response correlation and
// server-initiated calls over a single bidirectional message transport.
//
// The Engine owns the transport, a pending-call table keyed by request id,
// and the fan-in of outgoing messages from many Handle clones and from a
// pluggable ServerHandler's responses. Callers drive it with Run and submit
// work through a Handle:
//
//	transport := jsonrpctest.NewChannelTransport()
//	engine := jsonrpc.NewEngine(transport, jsonrpc.EngineOptions{})
//	handle := engine.Handle()
//
//	go func() {
//		if err := engine.Run(context.Background()); err != nil {
//			log.Printf("engine terminated: %v", err)
//		}
//	}()
//
//	var sum int
//	if err := handle.Call(ctx, "add", []int{1, 2}, &sum); err != nil {
//		log.Fatal(err)
//	}
//
// Concrete transports live in jsonrpc/transport. The subscription layer —
// built atop a Handle and a Router — lives in jsonrpc/pubsub. The wire
// message shapes and codec live in jsonrpc/wire.
package jsonrpc
