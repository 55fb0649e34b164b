package jsonrpc

// Executor spawns a function as an independent task. It is the injectable
// analogue of the task executor spec.md lists as an external collaborator:
// Router (including the default one an Engine creates) and
// pubsub.Subscriber spawn their tasks through one instead of calling `go`
// directly, so callers running inside their own scheduler (a worker pool, a test
// harness wanting deterministic scheduling) can supply their own.
type Executor interface {
	Go(func())
}

type goExecutor struct{}

func (goExecutor) Go(fn func()) {
	go fn()
}

// DefaultExecutor spawns every task with a plain `go` statement.
var DefaultExecutor Executor = goExecutor{}
