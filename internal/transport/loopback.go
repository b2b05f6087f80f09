package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/offchain/internal/channel"
	"github.com/oriys/offchain/internal/domain"
)

// Loopback is an in-memory channel.Sender used by scenario tests: it
// delivers a request into the peer's Channel.HandleRequest and feeds the
// reply back into the originating Channel, skipping signing and the
// network entirely. Each delivery runs on its own goroutine rather than
// inline in SendRequest, so that two or more sends already in flight, with
// RequestDelay/ResponseDelay staggering them, can complete out of the
// order SendRequest was called in. DropRequest and DropResponse let a test
// inject the loss conditions the retransmit and out-of-order paths are
// meant to survive. Call Drain before asserting final state: it blocks
// until every delivery this Loopback has started has finished.
type Loopback struct {
	mu      sync.Mutex
	local   *channel.Channel
	remotes map[string]*channel.Channel
	wg      sync.WaitGroup

	// DropRequest, when non-nil, is consulted before delivering each
	// request; returning true silently drops it (as if lost in transit).
	DropRequest func(req *domain.Request) bool
	// DropResponse, when non-nil, is consulted before applying the
	// remote's reply locally; returning true drops the reply but leaves
	// it already applied on the remote side, simulating a lost response.
	DropResponse func(resp *domain.Response) bool
	// RequestDelay, when non-nil, is consulted once per request and the
	// delivery goroutine sleeps that long before calling HandleRequest.
	// Two requests with different delays can therefore arrive at the
	// remote out of the order SendRequest was called in.
	RequestDelay func(req *domain.Request) time.Duration
	// ResponseDelay works like RequestDelay but delays applying the reply
	// locally, after the remote has already produced it.
	ResponseDelay func(resp *domain.Response) time.Duration
}

// NewLoopback returns a Loopback that feeds responses back into local.
func NewLoopback(local *channel.Channel) *Loopback {
	return &Loopback{local: local, remotes: make(map[string]*channel.Channel)}
}

// Connect registers remote as the Channel reached by addressing peer.
func (l *Loopback) Connect(peer domain.Address, remote *channel.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remotes[peer.String()] = remote
}

// Drain blocks until every delivery started by a prior SendRequest has
// finished, so a test can assert quiescent state.
func (l *Loopback) Drain() {
	l.wg.Wait()
}

// SendRequest implements channel.Sender. It queues delivery on a new
// goroutine and returns as soon as the remote is known to exist; the
// HandleRequest/HandleResponse round trip, and any configured delay,
// happens asynchronously. Errors from that round trip are not reported
// back to the caller, matching a real transport where the send call
// returns long before the peer's reply is known.
func (l *Loopback) SendRequest(ctx context.Context, peer domain.Address, req *domain.Request) error {
	if l.DropRequest != nil && l.DropRequest(req) {
		return nil
	}

	l.mu.Lock()
	remote, ok := l.remotes[peer.String()]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("loopback: no remote connected for peer %s", peer)
	}

	l.wg.Add(1)
	go l.deliver(ctx, remote, req)
	return nil
}

func (l *Loopback) deliver(ctx context.Context, remote *channel.Channel, req *domain.Request) {
	defer l.wg.Done()

	if l.RequestDelay != nil {
		if d := l.RequestDelay(req); d > 0 {
			time.Sleep(d)
		}
	}

	resp, err := remote.HandleRequest(ctx, req, false)
	if err != nil || resp == nil {
		return
	}
	if l.DropResponse != nil && l.DropResponse(resp) {
		return
	}

	if l.ResponseDelay != nil {
		if d := l.ResponseDelay(resp); d > 0 {
			time.Sleep(d)
		}
	}
	l.local.HandleResponse(ctx, resp)
}
