package builder

import (
	"errors"
	"sync/atomic"
)

// ErrStaleResponse is returned when a fetch completed after its target was
// replaced. Its result has been discarded.
var ErrStaleResponse = errors.New("builder: response superseded by a newer request")

// Generation issues monotonically increasing request tokens for one fetch
// target. Only the response carrying the latest token may be applied.
type Generation struct {
	n atomic.Uint64
}

// Next starts a new request and returns its token.
func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

// Current reports whether tok is the latest token.
func (g *Generation) Current(tok uint64) bool {
	return g.n.Load() == tok
}
