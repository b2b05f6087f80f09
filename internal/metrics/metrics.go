// Package metrics collects and exposes vaspd's channel-level observability
// data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (atomic counters) for the lightweight
//     JSON /metrics endpoint used by an operator dashboard.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems.
//
// # Concurrency — hot path
//
// Every Record* method is called from a channel's command path and must be
// fast: all counters are atomic, there is no shared lock on the hot path.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics collects and exposes vaspd runtime metrics.
type Metrics struct {
	CommandsSequenced atomic.Int64
	CommandsCommitted atomic.Int64
	CommandsFailed    atomic.Int64
	Retransmits       atomic.Int64

	ProtocolWait      atomic.Int64
	ProtocolMissing   atomic.Int64
	ProtocolConflict  atomic.Int64
	ProtocolMalformed atomic.Int64
	ProtocolParsing   atomic.Int64

	ChannelsOpened atomic.Int64

	startTime time.Time
}

var global = &Metrics{startTime: time.Now()}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordSequenced records one command appended to a channel's
// command_sequence, regardless of eventual outcome.
func (m *Metrics) RecordSequenced() {
	m.CommandsSequenced.Add(1)
}

// RecordCommit records a command's terminal commit outcome.
func (m *Metrics) RecordCommit(success bool) {
	if success {
		m.CommandsCommitted.Add(1)
	} else {
		m.CommandsFailed.Add(1)
	}
}

// RecordRetransmit records one resent request.
func (m *Metrics) RecordRetransmit() {
	m.Retransmits.Add(1)
}

// RecordProtocolError records a non-terminal protocol-error reply by code.
func (m *Metrics) RecordProtocolError(code string) {
	switch code {
	case "wait":
		m.ProtocolWait.Add(1)
	case "missing":
		m.ProtocolMissing.Add(1)
	case "conflict":
		m.ProtocolConflict.Add(1)
	case "malformed":
		m.ProtocolMalformed.Add(1)
	case "parsing":
		m.ProtocolParsing.Add(1)
	}
}

// RecordChannelOpened records a newly created pair channel.
func (m *Metrics) RecordChannelOpened() {
	m.ChannelsOpened.Add(1)
}

// snapshot is the JSON shape served by Handler.
type snapshot struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	CommandsSequenced int64   `json:"commands_sequenced"`
	CommandsCommitted int64   `json:"commands_committed"`
	CommandsFailed    int64   `json:"commands_failed"`
	Retransmits       int64   `json:"retransmits"`
	ChannelsOpened    int64   `json:"channels_opened"`
	ProtocolErrors    struct {
		Wait      int64 `json:"wait"`
		Missing   int64 `json:"missing"`
		Conflict  int64 `json:"conflict"`
		Malformed int64 `json:"malformed"`
		Parsing   int64 `json:"parsing"`
	} `json:"protocol_errors"`
}

// Handler serves a JSON snapshot of the in-process metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := snapshot{
			UptimeSeconds:     time.Since(global.startTime).Seconds(),
			CommandsSequenced: global.CommandsSequenced.Load(),
			CommandsCommitted: global.CommandsCommitted.Load(),
			CommandsFailed:    global.CommandsFailed.Load(),
			Retransmits:       global.Retransmits.Load(),
			ChannelsOpened:    global.ChannelsOpened.Load(),
		}
		s.ProtocolErrors.Wait = global.ProtocolWait.Load()
		s.ProtocolErrors.Missing = global.ProtocolMissing.Load()
		s.ProtocolErrors.Conflict = global.ProtocolConflict.Load()
		s.ProtocolErrors.Malformed = global.ProtocolMalformed.Load()
		s.ProtocolErrors.Parsing = global.ProtocolParsing.Load()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	})
}
