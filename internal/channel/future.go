package channel

import (
	"context"
	"sync"

	"github.com/oriys/offchain/internal/domain"
)

// Future is the completion handle returned by a suspension point: awaiting
// an out-of-order gap fill, or a deferred business-context answer. It
// resolves at most once; cancelling the caller's context prevents the
// pending result from being delivered but does not roll back any effect
// already persisted by whichever goroutine resolves it.
type Future struct {
	mu   sync.Mutex
	done chan struct{}
	resp *domain.Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve completes the future exactly once; subsequent calls are no-ops.
func (f *Future) resolve(resp *domain.Response, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	f.resp = resp
	f.err = err
	close(f.done)
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (*domain.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
