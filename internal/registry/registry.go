// Package registry implements the VASP registry (spec component C6): lazy,
// idempotent channel creation keyed by peer address, grounded on the
// cluster node registry's mutex-guarded map pattern.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oriys/offchain/internal/channel"
	"github.com/oriys/offchain/internal/circuitbreaker"
	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/logging"
	"github.com/oriys/offchain/internal/metrics"
	"github.com/oriys/offchain/internal/protocol"
)

// ErrChannelUnavailable is returned by Submit when the peer's circuit
// breaker is open.
var ErrChannelUnavailable = errors.New("registry: channel circuit breaker open")

// PeerDirectory resolves a counterparty address to the transport endpoint
// used to reach it. internal/config's static peer map and any dynamic
// discovery source both satisfy this.
type PeerDirectory interface {
	Endpoint(peer domain.Address) (string, bool)
}

// Registry owns every pair channel this VASP maintains, one per
// counterparty address, created on first use.
type Registry struct {
	mu       sync.RWMutex
	self     domain.Address
	store    kvstore.Store
	proto    *protocol.Registry
	sender   channel.Sender
	proc     domain.CommandProcessor
	events   *logging.Logger
	window   int
	channels map[string]*channel.Channel

	breakers   *circuitbreaker.Registry
	breakerCfg circuitbreaker.Config
}

// Config bundles a Registry's collaborators.
type Config struct {
	Self      domain.Address
	Store     kvstore.Store
	Protocol  *protocol.Registry
	Sender    channel.Sender
	Processor domain.CommandProcessor
	Events    *logging.Logger
	Window    int
	// Breaker configures the per-channel circuit breaker that trips a
	// channel after repeated storage/transport errors. Zero value
	// disables circuit breaking.
	Breaker circuitbreaker.Config
}

// New returns an empty Registry for Self.
func New(cfg Config) *Registry {
	return &Registry{
		self:       cfg.Self,
		store:      cfg.Store,
		proto:      cfg.Protocol,
		sender:     cfg.Sender,
		proc:       cfg.Processor,
		events:     cfg.Events,
		window:     cfg.Window,
		channels:   make(map[string]*channel.Channel),
		breakers:   circuitbreaker.NewRegistry(),
		breakerCfg: cfg.Breaker,
	}
}

// GetChannel returns the channel to peer, creating it on first use. Repeated
// calls for the same peer return the same *channel.Channel.
func (r *Registry) GetChannel(peer domain.Address) (*channel.Channel, error) {
	key := peer.String()

	r.mu.RLock()
	ch, ok := r.channels[key]
	r.mu.RUnlock()
	if ok {
		return ch, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[key]; ok {
		return ch, nil
	}

	ch, err := channel.New(channel.Config{
		Self:      r.self,
		Peer:      peer,
		Store:     r.store,
		Registry:  r.proto,
		Processor: r.proc,
		Sender:    r.sender,
		Events:    r.events,
		Window:    r.window,
	})
	if err != nil {
		return nil, fmt.Errorf("open channel to %s: %w", peer, err)
	}
	r.channels[key] = ch
	metrics.Global().RecordChannelOpened()
	metrics.RecordPrometheusChannelOpened()
	if r.events != nil {
		r.events.Log(&logging.ChannelEvent{Peer: peer.String(), Kind: "open", OK: true})
	}
	return ch, nil
}

// Channels returns a snapshot of every currently open channel.
func (r *Registry) Channels() []*channel.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*channel.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// CloseChannel drops the registry's reference to peer's channel. The
// channel's persisted state in the store is untouched; a later GetChannel
// reconstructs it from there.
func (r *Registry) CloseChannel(peer domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, peer.String())
}

// Submit resolves or opens the channel to peer and submits cmd on it,
// blocking for the outcome. If the channel's circuit breaker is open
// (repeated prior storage/transport errors), Submit fails fast with
// ErrChannelUnavailable instead of attempting the submission.
func (r *Registry) Submit(ctx context.Context, peer domain.Address, cmd domain.Command) (*domain.Response, error) {
	breaker := r.breakers.Get(peer.String(), r.breakerCfg)
	if breaker != nil && !breaker.Allow() {
		return nil, fmt.Errorf("%w: %s", ErrChannelUnavailable, peer)
	}

	ch, err := r.GetChannel(peer)
	if err != nil {
		if breaker != nil {
			breaker.RecordFailure()
		}
		return nil, err
	}
	resp, err := ch.SubmitAndWait(ctx, cmd)
	if breaker != nil {
		if err != nil {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}
	return resp, err
}

// BreakerSnapshot reports the circuit breaker state of every peer that has
// ever had one created, keyed by hex address.
func (r *Registry) BreakerSnapshot() map[string]string {
	return r.breakers.Snapshot()
}

// RetransmitAll ticks retransmission on every open channel, logging but not
// aborting on a single channel's failure.
func (r *Registry) RetransmitAll(ctx context.Context) {
	for _, ch := range r.Channels() {
		if err := ch.Retransmit(ctx); err != nil && r.events != nil {
			r.events.Log(&logging.ChannelEvent{Peer: ch.PeerAddr.String(), Kind: "retransmit", OK: false, Error: err.Error()})
		}
	}
}
