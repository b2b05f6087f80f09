package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oriys/offchain/internal/channel"
	"github.com/oriys/offchain/internal/circuitbreaker"
	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/payment"
	"github.com/oriys/offchain/internal/protocol"
)

var (
	selfAddr = domain.Address{0x02}
	peerAddr = domain.Address{0x05}
)

// loopbackSender answers every request synchronously against a bound
// Channel, optionally failing the first N sends, for exercising Submit's
// circuit-breaker wiring without a real transport.
type loopbackSender struct {
	mu        sync.Mutex
	ch        *channel.Channel
	failTimes int
	calls     int
}

func (s *loopbackSender) SendRequest(ctx context.Context, peer domain.Address, req *domain.Request) error {
	s.mu.Lock()
	s.calls++
	fail := s.failTimes > 0
	if fail {
		s.failTimes--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("send failed")
	}
	cseq := 0
	if req.CommandSeq != nil {
		cseq = *req.CommandSeq
	}
	resp := &domain.Response{CID: req.CID, Seq: req.Seq, CommandSeq: &cseq, Status: domain.StatusSuccess}
	return s.ch.HandleResponse(ctx, resp)
}

func newTestRegistry(t *testing.T, sender channel.Sender, breaker circuitbreaker.Config) *Registry {
	t.Helper()
	reg := protocol.NewRegistry()
	payment.Register(reg)
	return New(Config{
		Self:     selfAddr,
		Store:    kvstore.NewMemoryStore(),
		Protocol: reg,
		Sender:   sender,
		Window:   channel.DefaultWindow,
		Breaker:  breaker,
	})
}

func TestGetChannelIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, nil, circuitbreaker.Config{})

	a, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	b, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel (second call): %v", err)
	}
	if a != b {
		t.Fatalf("GetChannel returned distinct channels for the same peer")
	}
	if !a.IsClient {
		t.Fatalf("expected self=%v, peer=%v to assign the client role", selfAddr, peerAddr)
	}
}

func TestChannelsReturnsEveryOpenChannel(t *testing.T) {
	r := newTestRegistry(t, nil, circuitbreaker.Config{})

	other := domain.Address{0x10}
	if _, err := r.GetChannel(peerAddr); err != nil {
		t.Fatalf("GetChannel(peer): %v", err)
	}
	if _, err := r.GetChannel(other); err != nil {
		t.Fatalf("GetChannel(other): %v", err)
	}

	channels := r.Channels()
	if len(channels) != 2 {
		t.Fatalf("Channels() returned %d entries, want 2", len(channels))
	}
}

func TestCloseChannelThenReopenBuildsAFreshInstance(t *testing.T) {
	r := newTestRegistry(t, nil, circuitbreaker.Config{})

	first, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	r.CloseChannel(peerAddr)
	if len(r.Channels()) != 0 {
		t.Fatalf("Channels() after CloseChannel = %d, want 0", len(r.Channels()))
	}

	second, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel after close: %v", err)
	}
	if first == second {
		t.Fatalf("GetChannel after CloseChannel returned the same instance")
	}
}

func TestSubmitRoundTripsThroughChannel(t *testing.T) {
	sender := &loopbackSender{}
	r := newTestRegistry(t, sender, circuitbreaker.Config{})

	ch, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	sender.ch = ch

	cmd, err := payment.NewInit("alice", "bob", "USD", 10)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	resp, err := r.Submit(context.Background(), peerAddr, cmd)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Status != domain.StatusSuccess {
		t.Fatalf("Submit response = %+v, want success", resp)
	}
}

func TestSubmitTripsBreakerAfterRepeatedFailures(t *testing.T) {
	sender := &loopbackSender{failTimes: 10}
	breakerCfg := circuitbreaker.Config{ErrorPct: 50, WindowDuration: time.Minute, OpenDuration: time.Minute, HalfOpenProbes: 1}
	r := newTestRegistry(t, sender, breakerCfg)

	ch, err := r.GetChannel(peerAddr)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	sender.ch = ch

	cmd, err := payment.NewInit("alice", "bob", "USD", 10)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	if _, err := r.Submit(context.Background(), peerAddr, cmd); err == nil {
		t.Fatalf("Submit with a failing sender succeeded, want an error")
	}

	cmd2, err := payment.NewInit("alice", "bob", "USD", 20)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	_, err = r.Submit(context.Background(), peerAddr, cmd2)
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("Submit after a tripped breaker = %v, want ErrChannelUnavailable", err)
	}

	snapshot := r.BreakerSnapshot()
	if len(snapshot) != 1 {
		t.Fatalf("BreakerSnapshot = %v, want exactly one entry", snapshot)
	}
}

func TestRetransmitAllDoesNotPanicWithNoPendingWork(t *testing.T) {
	r := newTestRegistry(t, nil, circuitbreaker.Config{})
	if _, err := r.GetChannel(peerAddr); err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	r.RetransmitAll(context.Background())
}
