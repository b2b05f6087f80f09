// Package protocol implements the request/response envelopes exchanged
// between two VASPs (spec component C4): the wire codec, the closed-set
// command registry it dispatches through, and the protocol-error taxonomy.
package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/storable"
)

// objectTypeField is the wire discriminator every command and envelope
// carries, per spec §6.
const objectTypeField = "_ObjectType"

// Registry maps each command kind's wire tag to a constructor for a fresh,
// zero-valued instance, and implements sharedobject.CommandCodec against
// that mapping. A VASP process registers every command kind it understands
// once at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() domain.Command
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() domain.Command)}
}

// Register associates objectType with factory. Re-registering the same tag
// overwrites the previous factory.
func (r *Registry) Register(objectType string, factory func() domain.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[objectType] = factory
}

// Encode serializes cmd with full fidelity (storable.ModeStore), tagged
// with its ObjectType.
func (r *Registry) Encode(cmd domain.Command) ([]byte, error) {
	return r.EncodeMode(cmd, storable.ModeStore)
}

// EncodeMode serializes cmd under the requested mode, tagged with its
// ObjectType so Decode can dispatch back to the right Go type.
func (r *Registry) EncodeMode(cmd domain.Command, mode storable.Mode) ([]byte, error) {
	raw, err := storable.JSONCodec[domain.Command]{}.Encode(cmd, mode)
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", cmd.ObjectType(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode command %s: %w", cmd.ObjectType(), err)
	}
	tag, err := json.Marshal(cmd.ObjectType())
	if err != nil {
		return nil, err
	}
	fields[objectTypeField] = tag
	return json.Marshal(fields)
}

// Decode reads the _ObjectType tag from b and unmarshals into a fresh
// instance from the matching registered factory.
func (r *Registry) Decode(b []byte) (domain.Command, error) {
	var tagged struct {
		ObjectType string `json:"_ObjectType"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	if tagged.ObjectType == "" {
		return nil, fmt.Errorf("%w: missing _ObjectType", ErrParsing)
	}

	r.mu.RLock()
	factory, ok := r.factories[tagged.ObjectType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown _ObjectType %q", ErrParsing, tagged.ObjectType)
	}

	cmd := factory()
	if err := json.Unmarshal(b, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	return cmd, nil
}
