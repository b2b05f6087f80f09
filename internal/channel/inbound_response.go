package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/observability"
)

// HandleResponse applies an inbound response to the request it answers,
// following spec §4.5's "response handling" branch on command_seq versus the
// local cursor. A response carrying a retryable protocol error (wait,
// missing, conflict, malformed) is not applied; it is left for retransmit to
// resend the original request.
func (c *Channel) HandleResponse(ctx context.Context, resp *domain.Response) error {
	ctx, span := observability.StartServerSpan(ctx, "channel.HandleResponse",
		observability.AttrPeerAddress.String(c.PeerAddr.String()),
		observability.AttrSelfAddress.String(c.SelfAddr.String()),
		observability.AttrSeq.Int(resp.Seq),
		observability.AttrStatus.String(string(resp.Status)),
	)
	defer span.End()

	if err := c.handleResponse(ctx, resp); err != nil {
		observability.SetSpanError(span, err)
		return err
	}
	observability.SetSpanOK(span)
	return nil
}

func (c *Channel) handleResponse(ctx context.Context, resp *domain.Response) error {
	c.mu.Lock()

	myLen, err := c.myRequests.Len(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if resp.Seq < 0 || resp.Seq >= myLen {
		c.mu.Unlock()
		return fmt.Errorf("response for unknown request seq=%d", resp.Seq)
	}
	stored, err := c.myRequests.Get(ctx, resp.Seq)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if stored.Response != nil {
		c.mu.Unlock()
		return nil
	}
	if resp.Error != nil && resp.Error.Code != "" {
		c.mu.Unlock()
		return nil
	}
	if resp.CommandSeq == nil {
		c.mu.Unlock()
		return fmt.Errorf("non-protocol-error response for seq=%d missing command_seq", resp.Seq)
	}
	cseq := *resp.CommandSeq

	cursor, err := c.responseCursorLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if cseq > cursor {
		if cseq-cursor <= c.window {
			c.responseCache[cseq] = cachedResponse{reqSeq: resp.Seq, resp: resp}
		}
		c.mu.Unlock()
		return nil
	}

	applyErr := c.applyResponseLocked(ctx, resp.Seq, resp, cseq)
	if applyErr == nil {
		c.drainResponseCacheLocked(ctx)
	}
	c.mu.Unlock()
	return applyErr
}

// responseCursorLocked is the command_seq a just-arrived response must carry
// to be applied in order: the executor's next unassigned seq for a client
// (which never pre-sequences its own submissions), or last_confirmed for a
// server. The server branch deliberately does not mirror the client branch
// by using NextSeq: a server that has already pre-sequenced a response
// speculatively still has that entry sitting at status CommitPending, so
// NextSeq would count it as "assigned" the moment it's submitted, before
// any outcome is known. Using last_confirmed here keeps this branch
// aligned with Executor.finalizeWithReason's own seq == last_confirmed
// assertion, which is what SetSuccess/SetFail actually enforce. See
// DESIGN.md's open-questions ledger for why this departs from the
// original's single next_final_sequence() cursor for both roles.
// Caller holds c.mu.
func (c *Channel) responseCursorLocked(ctx context.Context) (int, error) {
	if c.IsClient {
		return c.executor.NextSeq(ctx)
	}
	return c.executor.LastConfirmed(ctx)
}

// applyResponseLocked finalizes the outcome resp carries for local request
// reqSeq at command_seq cseq. Caller holds c.mu.
func (c *Channel) applyResponseLocked(ctx context.Context, reqSeq int, resp *domain.Response, cseq int) error {
	guard, err := c.factory.Atomic(ctx)
	if err != nil {
		return err
	}

	var seqErr error
	if resp.Status == domain.StatusFailure && resp.Error != nil {
		seqErr = errors.New(resp.Error.Message)
	}

	stored, err := c.myRequests.Get(ctx, reqSeq)
	if err != nil {
		guard.Rollback(ctx)
		return err
	}

	if c.IsClient {
		cmd, err := c.registry.Decode(stored.CommandRaw)
		if err != nil {
			guard.Rollback(ctx)
			return err
		}
		idx, applyErr := c.executor.SequenceNextCommand(ctx, cmd, domain.Committed, false)
		if applyErr != nil {
			seqErr = applyErr
		}
		if seqErr == nil {
			if err := c.executor.SetSuccess(ctx, idx); err != nil {
				guard.Rollback(ctx)
				return err
			}
		} else if err := c.executor.SetFail(ctx, idx, seqErr); err != nil {
			guard.Rollback(ctx)
			return err
		}
	} else {
		if seqErr == nil {
			if err := c.executor.SetSuccess(ctx, cseq); err != nil {
				guard.Rollback(ctx)
				return err
			}
		} else if err := c.executor.SetFail(ctx, cseq, seqErr); err != nil {
			guard.Rollback(ctx)
			return err
		}
	}

	stored.Response = fromResponse(resp)
	if err := c.myRequests.Set(ctx, reqSeq, stored); err != nil {
		guard.Rollback(ctx)
		return err
	}
	if err := guard.Commit(ctx); err != nil {
		return err
	}

	c.logEvent("response", reqSeq, seqErr == nil, seqErr)
	if fut, ok := c.waitingResponses[reqSeq]; ok {
		delete(c.waitingResponses, reqSeq)
		fut.resolve(stored.Response.toResponse(stored.CID, reqSeq), nil)
	}
	return nil
}

// drainResponseCacheLocked applies any buffered responses whose command_seq
// gap has just closed. Caller holds c.mu.
func (c *Channel) drainResponseCacheLocked(ctx context.Context) {
	for {
		cursor, err := c.responseCursorLocked(ctx)
		if err != nil {
			return
		}
		cached, ok := c.responseCache[cursor]
		if !ok {
			return
		}
		delete(c.responseCache, cursor)
		if err := c.applyResponseLocked(ctx, cached.reqSeq, cached.resp, cursor); err != nil {
			return
		}
	}
}
