package channel

import (
	"context"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/observability"
)

// Submit sequences and persists a locally-originated command, then emits
// the resulting wire request outside the channel's lock. Only the server
// side pre-sequences (assigns a command_seq) before persisting; clients
// submit with no command_seq and learn it from the eventual response.
func (c *Channel) Submit(ctx context.Context, cmd domain.Command) error {
	ctx, span := observability.StartClientSpan(ctx, "channel.Submit",
		observability.AttrPeerAddress.String(c.PeerAddr.String()),
		observability.AttrSelfAddress.String(c.SelfAddr.String()),
		observability.AttrObjectType.String(cmd.ObjectType()),
	)
	defer span.End()

	req, err := c.submitLocked(ctx, cmd)
	if err != nil {
		observability.SetSpanError(span, err)
		return err
	}
	span.SetAttributes(observability.AttrSeq.Int(req.Seq))
	c.logEvent("submit", req.Seq, true, nil)
	if c.sender == nil {
		observability.SetSpanOK(span)
		return nil
	}
	if err := c.sender.SendRequest(ctx, c.PeerAddr, req); err != nil {
		err = fmt.Errorf("emit request: %w", err)
		observability.SetSpanError(span, err)
		return err
	}
	observability.SetSpanOK(span)
	return nil
}

// SubmitAndWait submits cmd and blocks until its outcome (success or
// business failure) is known, draining through HandleResponse on whatever
// goroutine delivers it. A reply carrying a protocol error code does not
// end the wait; the request stays pending for Retransmit.
func (c *Channel) SubmitAndWait(ctx context.Context, cmd domain.Command) (*domain.Response, error) {
	ctx, span := observability.StartClientSpan(ctx, "channel.SubmitAndWait",
		observability.AttrPeerAddress.String(c.PeerAddr.String()),
		observability.AttrSelfAddress.String(c.SelfAddr.String()),
		observability.AttrObjectType.String(cmd.ObjectType()),
	)
	defer span.End()

	req, err := c.submitLocked(ctx, cmd)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.AttrSeq.Int(req.Seq))

	c.mu.Lock()
	fut := newFuture()
	c.waitingResponses[req.Seq] = fut
	c.mu.Unlock()

	c.logEvent("submit", req.Seq, true, nil)
	if c.sender != nil {
		if err := c.sender.SendRequest(ctx, c.PeerAddr, req); err != nil {
			err = fmt.Errorf("emit request: %w", err)
			observability.SetSpanError(span, err)
			return nil, err
		}
	}
	resp, err := fut.Wait(ctx)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	if resp != nil {
		span.SetAttributes(observability.AttrStatus.String(string(resp.Status)))
	}
	observability.SetSpanOK(span)
	return resp, nil
}

func (c *Channel) submitLocked(ctx context.Context, cmd domain.Command) (*domain.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	guard, err := c.factory.Atomic(ctx)
	if err != nil {
		return nil, fmt.Errorf("open submit transaction: %w", err)
	}

	seq, err := c.myRequests.Len(ctx)
	if err != nil {
		guard.Rollback(ctx)
		return nil, err
	}

	var commandSeq *int
	if !c.IsClient {
		idx, err := c.executor.SequenceNextCommand(ctx, cmd, domain.Speculative, true)
		if err != nil {
			guard.Rollback(ctx)
			c.logEvent("submit", seq, false, err)
			return nil, fmt.Errorf("sequence local command: %w", err)
		}
		commandSeq = &idx
	}

	raw, err := c.registry.Encode(cmd)
	if err != nil {
		guard.Rollback(ctx)
		return nil, fmt.Errorf("encode command: %w", err)
	}

	cid, err := domain.NewCID()
	if err != nil {
		guard.Rollback(ctx)
		return nil, err
	}

	if _, err := c.myRequests.Append(ctx, storedRequest{CID: cid, Seq: seq, CommandSeq: commandSeq, CommandRaw: raw}); err != nil {
		guard.Rollback(ctx)
		return nil, fmt.Errorf("persist request: %w", err)
	}
	if err := guard.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.Request{CID: cid, Seq: seq, CommandSeq: commandSeq, Command: cmd}, nil
}
