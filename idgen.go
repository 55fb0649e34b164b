package jsonrpc

import (
	"sync/atomic"

	"github.com/alexander-irbis/jsonrpc-client-go/wire"
)

// IDGenerator produces request ids unique for one Engine's lifetime. The
// public contract is uniqueness only; monotonicity and representation are
// implementation freedoms, matching the original id_generator contract.
type IDGenerator interface {
	Next() wire.ID
}

type monotonicIDGenerator struct {
	counter atomic.Int64
}

// NewIDGenerator returns the default IDGenerator: a monotonically
// increasing integer counter starting at 1.
func NewIDGenerator() IDGenerator {
	return &monotonicIDGenerator{}
}

func (g *monotonicIDGenerator) Next() wire.ID {
	return wire.NewIntID(g.counter.Add(1))
}
