// Package channel implements the two-party pair-channel state machine at
// the center of the module (spec component C5): role assignment, ordering,
// retransmission, conflict resolution, out-of-order buffering and response
// application.
package channel

import (
	"context"
	"sync"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/logging"
	"github.com/oriys/offchain/internal/protocol"
	"github.com/oriys/offchain/internal/sharedobject"
	"github.com/oriys/offchain/internal/storable"
)

// DefaultWindow bounds how far ahead of the current cursor an out-of-order
// request or response may be buffered, per spec §9 Q3.
const DefaultWindow = 1000

// Sender emits a signed wire message to the peer, outside the channel's
// lock. internal/transport's Loopback and Client both satisfy this
// structurally.
type Sender interface {
	SendRequest(ctx context.Context, peer domain.Address, req *domain.Request) error
}

// storedRequest is the persisted shape of one my_requests/other_requests
// entry: the command is kept as registry-tagged bytes since domain.Command
// is an interface.
type storedRequest struct {
	CID        string        `json:"cid"`
	Seq        int           `json:"seq"`
	CommandSeq *int          `json:"command_seq,omitempty"`
	CommandRaw []byte        `json:"command"`
	Response   *storedResult `json:"response,omitempty"`
}

type storedResult struct {
	CommandSeq *int             `json:"command_seq,omitempty"`
	Status     domain.Status    `json:"status"`
	ErrorCode  domain.ErrorCode `json:"error_code,omitempty"`
	ErrorMsg   string           `json:"error_message,omitempty"`
}

func (r *storedResult) toResponse(cid string, seq int) *domain.Response {
	if r == nil {
		return nil
	}
	resp := &domain.Response{CID: cid, Seq: seq, CommandSeq: r.CommandSeq, Status: r.Status}
	if r.ErrorCode != "" {
		resp.Error = &domain.ProtocolError{Code: r.ErrorCode, Message: r.ErrorMsg}
	}
	return resp
}

func fromResponse(resp *domain.Response) *storedResult {
	if resp == nil {
		return nil
	}
	r := &storedResult{CommandSeq: resp.CommandSeq, Status: resp.Status}
	if resp.Error != nil {
		r.ErrorCode = resp.Error.Code
		r.ErrorMsg = resp.Error.Message
	}
	return r
}

// cachedResponse pairs an early-arriving response (command_seq ahead of the
// executor's cursor) with the local request seq it answers, so it can be
// replayed once the gap fills.
type cachedResponse struct {
	reqSeq int
	resp   *domain.Response
}

// Channel is the bidirectional conversation with exactly one peer VASP.
type Channel struct {
	mu sync.Mutex

	SelfAddr domain.Address
	PeerAddr domain.Address
	IsClient bool

	registry  *protocol.Registry
	codec     *protocol.Codec
	factory   *storable.Factory
	executor  *sharedobject.Executor
	processor domain.CommandProcessor
	sender    Sender
	events    *logging.Logger
	window    int

	myRequests     *storable.List[storedRequest]
	otherRequests  *storable.List[storedRequest]
	nextRetransmit *storable.Value[int]

	// Ephemeral state, intentionally outside the transaction: rebuildable
	// from persisted state plus retransmission.
	responseCache     map[int]cachedResponse
	waitingRequests   map[int]*Future
	waitingResponses  map[int]*Future
	pendingReqByCqSeq map[int]*domain.Request
}

// Config bundles a Channel's collaborators.
type Config struct {
	Self, Peer domain.Address
	Store      kvstore.Store
	Registry   *protocol.Registry
	Processor  domain.CommandProcessor
	Sender     Sender
	Events     *logging.Logger
	Window     int
}

// New constructs a Channel over ns := {"", self, peer}, computing the role
// deterministically from the two addresses.
func New(cfg Config) (*Channel, error) {
	isClient, err := AssignRole(cfg.Self, cfg.Peer)
	if err != nil {
		return nil, err
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	ns := kvstore.Namespace{"", cfg.Self.String(), cfg.Peer.String()}
	factory := storable.NewFactory(cfg.Store)
	codec := protocol.NewCodec(cfg.Registry)

	c := &Channel{
		SelfAddr:         cfg.Self,
		PeerAddr:         cfg.Peer,
		IsClient:         isClient,
		registry:         cfg.Registry,
		codec:            codec,
		factory:          factory,
		processor:        cfg.Processor,
		sender:           cfg.Sender,
		events:           cfg.Events,
		window:           window,
		myRequests:       storable.NewList[storedRequest](cfg.Store, ns.Child("my_requests"), "__len__", nil),
		otherRequests:    storable.NewList[storedRequest](cfg.Store, ns.Child("other_requests"), "__len__", nil),
		nextRetransmit:   storable.NewValue[int](cfg.Store, ns, "next_retransmit", nil),
		responseCache:    make(map[int]cachedResponse),
		waitingRequests:  make(map[int]*Future),
		waitingResponses: make(map[int]*Future),
	}
	c.executor = sharedobject.NewExecutor(cfg.Store, ns.Child("executor"), registryCodec{cfg.Registry}, cfg.Processor)
	return c, nil
}

// SetSender binds or replaces the Channel's outbound sender after
// construction. Config.Sender covers the common case; this exists for
// wiring that cannot supply the sender until the Channel itself exists,
// such as a transport.Loopback built from its own local Channel.
func (c *Channel) SetSender(sender Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = sender
}

// registryCodec adapts *protocol.Registry to sharedobject.CommandCodec.
type registryCodec struct{ r *protocol.Registry }

func (c registryCodec) Encode(cmd domain.Command) ([]byte, error) { return c.r.Encode(cmd) }
func (c registryCodec) Decode(b []byte) (domain.Command, error)   { return c.r.Decode(b) }

func (c *Channel) logEvent(kind string, seq int, ok bool, err error) {
	if c.events == nil {
		return
	}
	ev := &logging.ChannelEvent{
		Peer:  c.PeerAddr.String(),
		Kind:  kind,
		Seq:   seq,
		OK:    ok,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.events.Log(ev)
}

// PendingRetransmitCount returns how many locally-submitted requests have
// not yet received a success or failure response. Protocol-error replies
// are not recorded, so a request answered only by one still counts.
func (c *Channel) PendingRetransmitCount(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
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
