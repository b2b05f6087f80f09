package channel

import (
	"bytes"
	"context"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/metrics"
	"github.com/oriys/offchain/internal/observability"
)

func protocolErrorResponse(req *domain.Request, code domain.ErrorCode, msg string) *domain.Response {
	metrics.Global().RecordProtocolError(string(code))
	metrics.RecordPrometheusProtocolError(string(code))
	return &domain.Response{
		CID:    req.CID,
		Seq:    req.Seq,
		Status: domain.StatusFailure,
		Error:  &domain.ProtocolError{Code: code, Message: msg},
	}
}

// HandleRequest processes an inbound wire request from the peer, following
// spec §4.5's table top-to-bottom. If nowait is true, an out-of-order
// request is answered immediately with missing rather than buffered.
func (c *Channel) HandleRequest(ctx context.Context, req *domain.Request, nowait bool) (*domain.Response, error) {
	ctx, span := observability.StartServerSpan(ctx, "channel.HandleRequest",
		observability.AttrPeerAddress.String(c.PeerAddr.String()),
		observability.AttrSelfAddress.String(c.SelfAddr.String()),
		observability.AttrSeq.Int(req.Seq),
	)
	defer span.End()

	resp, err := c.handleRequest(ctx, req, nowait)
	if err != nil {
		observability.SetSpanError(span, err)
		return resp, err
	}
	if resp != nil {
		span.SetAttributes(observability.AttrStatus.String(string(resp.Status)))
	}
	observability.SetSpanOK(span)
	return resp, nil
}

func (c *Channel) handleRequest(ctx context.Context, req *domain.Request, nowait bool) (*domain.Response, error) {
	c.mu.Lock()

	otherLen, err := c.otherRequests.Len(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if req.Seq < otherLen {
		resp, err := c.resendOrConflictLocked(ctx, req)
		c.mu.Unlock()
		return resp, err
	}

	if !c.IsClient && req.CommandSeq != nil {
		c.mu.Unlock()
		return protocolErrorResponse(req, domain.ErrCodeMalformed, "server does not accept a client-assigned command_seq"), nil
	}

	if !c.IsClient {
		pending, err := c.pendingLocalUnansweredLocked(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		if pending > 0 {
			c.mu.Unlock()
			return protocolErrorResponse(req, domain.ErrCodeWait, "server has outstanding local requests"), nil
		}
	}

	if req.Seq > otherLen {
		return c.bufferOrMissingLocked(ctx, req, otherLen, nowait)
	}

	// req.Seq == otherLen.
	if c.IsClient && req.CommandSeq != nil {
		next, err := c.executor.NextSeq(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		if *req.CommandSeq > next {
			return c.bufferOrWaitLocked(ctx, req, nowait)
		}
	}

	resp, err := c.acceptRequestLocked(ctx, req)
	if err == nil {
		c.drainWaitingRequestsLocked(ctx)
	}
	c.mu.Unlock()
	return resp, err
}

// resendOrConflictLocked handles a request whose seq has already been
// answered. Caller holds c.mu.
func (c *Channel) resendOrConflictLocked(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	stored, err := c.otherRequests.Get(ctx, req.Seq)
	if err != nil {
		return nil, err
	}
	reqRaw, err := c.registry.Encode(req.Command)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(reqRaw, stored.CommandRaw) {
		return stored.Response.toResponse(req.CID, req.Seq), nil
	}

	resp := protocolErrorResponse(req, domain.ErrCodeConflict, "seq already used for a different command")
	if orig, derr := c.registry.Decode(stored.CommandRaw); derr == nil {
		resp.Error.Command = orig
	}
	return resp, nil
}

// bufferOrMissingLocked handles req.Seq > otherLen.
func (c *Channel) bufferOrMissingLocked(ctx context.Context, req *domain.Request, otherLen int, nowait bool) (*domain.Response, error) {
	if nowait || req.Seq-otherLen > c.window {
		c.mu.Unlock()
		return protocolErrorResponse(req, domain.ErrCodeMissing, "gap in peer sequence"), nil
	}
	fut := newFuture()
	c.waitingRequests[req.Seq] = fut
	c.pendingRequests()[req.Seq] = req
	c.mu.Unlock()
	return fut.Wait(ctx)
}

// bufferOrWaitLocked handles the client-cannot-confirm-yet case for
// req.Seq == otherLen.
func (c *Channel) bufferOrWaitLocked(ctx context.Context, req *domain.Request, nowait bool) (*domain.Response, error) {
	if nowait {
		c.mu.Unlock()
		return protocolErrorResponse(req, domain.ErrCodeWait, "cannot confirm command_seq yet"), nil
	}
	fut := newFuture()
	c.waitingRequests[req.Seq] = fut
	c.pendingRequests()[req.Seq] = req
	c.mu.Unlock()
	return fut.Wait(ctx)
}

// acceptRequestLocked sequences req.Command as a non-speculative commit and
// appends the outcome to other_requests. Caller holds c.mu.
func (c *Channel) acceptRequestLocked(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	guard, err := c.factory.Atomic(ctx)
	if err != nil {
		return nil, fmt.Errorf("open accept transaction: %w", err)
	}

	idx, seqErr := c.executor.SequenceNextCommand(ctx, req.Command, domain.Committed, false)

	resp := &domain.Response{CID: req.CID, Seq: req.Seq, CommandSeq: &idx}
	if seqErr == nil {
		resp.Status = domain.StatusSuccess
	} else {
		resp.Status = domain.StatusFailure
		resp.Error = &domain.ProtocolError{Message: seqErr.Error()}
	}

	raw, err := c.registry.Encode(req.Command)
	if err != nil {
		guard.Rollback(ctx)
		return nil, fmt.Errorf("encode inbound command: %w", err)
	}
	if _, err := c.otherRequests.Append(ctx, storedRequest{
		CID:        req.CID,
		Seq:        req.Seq,
		CommandSeq: &idx,
		CommandRaw: raw,
		Response:   fromResponse(resp),
	}); err != nil {
		guard.Rollback(ctx)
		return nil, fmt.Errorf("persist inbound request: %w", err)
	}

	if seqErr == nil {
		if err := c.executor.SetSuccess(ctx, idx); err != nil {
			guard.Rollback(ctx)
			return nil, err
		}
	} else {
		if err := c.executor.SetFail(ctx, idx, seqErr); err != nil {
			guard.Rollback(ctx)
			return nil, err
		}
	}

	if err := guard.Commit(ctx); err != nil {
		return nil, err
	}
	c.logEvent("request", req.Seq, seqErr == nil, seqErr)
	return resp, nil
}

// pendingLocalUnansweredLocked counts my_requests with no stored response
// yet, including those that only received a protocol-error reply (per §9
// Q2, decided in DESIGN.md to count as still-pending). Caller holds c.mu.
func (c *Channel) pendingLocalUnansweredLocked(ctx context.Context) (int, error) {
	n, err := c.myRequests.Len(ctx)
	if err != nil {
		return 0, err
	}
	pending := 0
	for i := 0; i < n; i++ {
		r, err := c.myRequests.Get(ctx, i)
		if err != nil {
			return 0, err
		}
		if r.Response == nil {
			pending++
		}
	}
	return pending, nil
}

// drainWaitingRequestsLocked resolves any buffered out-of-order requests
// whose gap has just closed. Caller holds c.mu.
func (c *Channel) drainWaitingRequestsLocked(ctx context.Context) {
	for {
		otherLen, err := c.otherRequests.Len(ctx)
		if err != nil {
			return
		}
		fut, ok := c.waitingRequests[otherLen]
		if !ok {
			return
		}
		req := c.pendingRequests()[otherLen]
		delete(c.waitingRequests, otherLen)
		delete(c.pendingRequests(), otherLen)

		resp, err := c.acceptRequestLocked(ctx, req)
		fut.resolve(resp, err)
	}
}

func (c *Channel) pendingRequests() map[int]*domain.Request {
	if c.pendingReqByCqSeq == nil {
		c.pendingReqByCqSeq = make(map[int]*domain.Request)
	}
	return c.pendingReqByCqSeq
}
