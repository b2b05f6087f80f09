package channel

import (
	"context"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/metrics"
)

// Retransmit finds the smallest locally-submitted request with no response
// yet and resends only that one request: a caller invoking this on a timer
// re-drives one gap at a time rather than flooding the peer with every
// outstanding request on every tick. next_retransmit is advanced past any
// prefix that has already completed so a long-lived channel doesn't rescan
// its full history on every tick.
func (c *Channel) Retransmit(ctx context.Context) error {
	c.mu.Lock()

	start, err := c.nextRetransmitLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	n, err := c.myRequests.Len(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	cursor := start
	earliest := -1
	for i := start; i < n; i++ {
		r, err := c.myRequests.Get(ctx, i)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if r.Response != nil {
			cursor = i + 1
			continue
		}
		earliest = i
		break
	}

	if cursor > start {
		guard, err := c.factory.Atomic(ctx)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if err := c.nextRetransmit.Put(ctx, cursor); err != nil {
			guard.Rollback(ctx)
			c.mu.Unlock()
			return err
		}
		if err := guard.Commit(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
	}

	peer := c.PeerAddr
	sender := c.sender
	c.mu.Unlock()

	if sender == nil || earliest < 0 {
		return nil
	}
	req, err := c.requestAtLocked(ctx, earliest)
	if err != nil {
		return fmt.Errorf("reload request %d for retransmit: %w", earliest, err)
	}
	if err := sender.SendRequest(ctx, peer, req); err != nil {
		return fmt.Errorf("retransmit seq=%d: %w", earliest, err)
	}
	metrics.Global().RecordRetransmit()
	metrics.RecordPrometheusRetransmit()
	c.logEvent("retransmit", earliest, true, nil)
	return nil
}

func (c *Channel) nextRetransmitLocked(ctx context.Context) (int, error) {
	v, err := c.nextRetransmit.Get(ctx)
	if err == kvstore.ErrNotFound {
		return 0, nil
	}
	return v, err
}

func (c *Channel) requestAtLocked(ctx context.Context, seq int) (*domain.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, err := c.myRequests.Get(ctx, seq)
	if err != nil {
		return nil, err
	}
	cmd, err := c.registry.Decode(stored.CommandRaw)
	if err != nil {
		return nil, err
	}
	return &domain.Request{CID: stored.CID, Seq: stored.Seq, CommandSeq: stored.CommandSeq, Command: cmd}, nil
}
