package main

import (
	"context"
	"fmt"
	"os"

	"github.com/oriys/offchain/internal/circuitbreaker"
	"github.com/oriys/offchain/internal/compliance"
	"github.com/oriys/offchain/internal/config"
	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/logging"
	"github.com/oriys/offchain/internal/metrics"
	"github.com/oriys/offchain/internal/observability"
	"github.com/oriys/offchain/internal/payment"
	"github.com/oriys/offchain/internal/protocol"
	"github.com/oriys/offchain/internal/registry"
	"github.com/oriys/offchain/internal/signer"
	"github.com/oriys/offchain/internal/transport"
)

type appConfig = config.Config

// buildConfig loads DefaultConfig, overlays an optional file, then env.
func buildConfig(path string) (*appConfig, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// app bundles every collaborator a vaspd process needs, whether it is
// serving inbound traffic or just submitting one command and exiting.
type app struct {
	cfg      *appConfig
	self     domain.Address
	store    kvstore.Store
	proto    *protocol.Registry
	peers    *config.PeerTable
	signer   signer.Signer
	client   *transport.Client
	registry *registry.Registry
	server   *transport.Server
	events   *logging.Logger
}

// newApp wires storage, the command registry, the transport client/server
// pair, and the VASP registry, in the teacher's default-then-file-then-env,
// then-construct-collaborators order.
func newApp(ctx context.Context, cfg *appConfig, keyFile string) (*app, error) {
	logging.SetLevelFromString(cfg.Daemon.LogLevel)
	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

	if cfg.Observability.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
	}

	tr := cfg.Observability.Tracing
	if err := observability.Init(ctx, observability.Config{
		Enabled:     tr.Enabled,
		Exporter:    tr.Exporter,
		Endpoint:    tr.Endpoint,
		ServiceName: tr.ServiceName,
		SampleRate:  tr.SampleRate,
	}); err != nil {
		logging.Op().Warn("tracing disabled, failed to initialize", "error", err)
	}

	self, err := cfg.SelfAddress()
	if err != nil {
		return nil, fmt.Errorf("self address: %w", err)
	}

	var store kvstore.Store
	if cfg.Postgres.DSN != "" {
		pg, err := kvstore.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			logging.Op().Warn("postgres unavailable, falling back to in-memory store", "error", err)
			store = kvstore.NewMemoryStore()
		} else {
			store = pg
		}
	} else {
		store = kvstore.NewMemoryStore()
	}

	proto := protocol.NewRegistry()
	payment.Register(proto)

	peers, err := config.NewPeerTable(cfg.Peers)
	if err != nil {
		return nil, fmt.Errorf("peer table: %w", err)
	}

	sgn, err := loadOrGenerateSigner(keyFile)
	if err != nil {
		return nil, err
	}

	events := logging.Default()
	codec := protocol.NewCodec(proto)
	client := transport.NewClient(self, peers, peers, sgn, codec)

	engine := compliance.NewEngine()

	reg := registry.New(registry.Config{
		Self:      self,
		Store:     store,
		Protocol:  proto,
		Sender:    client,
		Processor: engine,
		Events:    events,
		Window:    cfg.Daemon.Window,
		Breaker: circuitbreaker.Config{
			ErrorPct:       50,
			WindowDuration: cfg.Daemon.RetransmitTick * 10,
			OpenDuration:   cfg.Daemon.RetransmitTick * 5,
			HalfOpenProbes: 1,
		},
	})
	client.Bind(reg)

	server := transport.NewServer(self, reg, codec, sgn, peers, events)

	return &app{
		cfg:      cfg,
		self:     self,
		store:    store,
		proto:    proto,
		peers:    peers,
		signer:   sgn,
		client:   client,
		registry: reg,
		server:   server,
		events:   events,
	}, nil
}

// loadOrGenerateSigner reads a persisted Ed25519 seed from keyFile, or
// generates and saves a fresh identity if keyFile does not exist yet.
func loadOrGenerateSigner(keyFile string) (*signer.Ed25519Signer, error) {
	if keyFile == "" {
		return signer.NewEd25519Signer()
	}
	if _, err := os.Stat(keyFile); err == nil {
		return signer.LoadEd25519SignerFromFile(keyFile)
	}
	sgn, err := signer.NewEd25519Signer()
	if err != nil {
		return nil, err
	}
	if err := signer.SaveSeed(keyFile, sgn.Seed()); err != nil {
		return nil, fmt.Errorf("save generated key to %s: %w", keyFile, err)
	}
	return sgn, nil
}
