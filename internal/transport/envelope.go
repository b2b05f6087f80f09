// Package transport carries signed wire requests and responses between two
// VASPs over net/http, grounded on the teacher's dataplane JSON handlers
// (plain net/http + encoding/json, no code generation step).
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/signer"
)

// envelope is the signed container every HTTP body carries: Body is the
// protocol codec's JSON rendering of a domain.Request or domain.Response,
// Sig is the sender's detached signature over Body.
type envelope struct {
	From domain.Address  `json:"from"`
	Body json.RawMessage `json:"body"`
	Sig  []byte          `json:"sig"`
}

// KeyDirectory resolves a VASP address to the public key it signs with.
// VASP discovery and key distribution are out of scope; callers populate
// this from whatever out-of-band process established the pairing.
type KeyDirectory interface {
	PublicKey(peer domain.Address) ([]byte, bool)
}

func sealEnvelope(self domain.Address, s signer.Signer, body []byte) ([]byte, error) {
	sig, err := s.Sign(body)
	if err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}
	return json.Marshal(envelope{From: self, Body: body, Sig: sig})
}

func openEnvelope(s signer.Signer, keys KeyDirectory, data []byte) (domain.Address, []byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	pub, ok := keys.PublicKey(env.From)
	if !ok {
		return nil, nil, fmt.Errorf("unknown sender %s", env.From)
	}
	if err := s.Verify(pub, env.Body, env.Sig); err != nil {
		return nil, nil, fmt.Errorf("verify envelope from %s: %w", env.From, err)
	}
	return env.From, env.Body, nil
}
