package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/storable"
)

const (
	requestObjectType  = "CommandRequestObject"
	responseObjectType = "CommandResponseObject"
)

type wireRequest struct {
	ObjectType string          `json:"_ObjectType"`
	CID        string          `json:"cid"`
	Seq        int             `json:"seq"`
	CommandSeq *int            `json:"command_seq"`
	Command    json.RawMessage `json:"command"`
}

type wireErrorPayload struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message,omitempty"`
}

type wireResponse struct {
	ObjectType string            `json:"_ObjectType"`
	CID        string            `json:"cid"`
	Seq        int               `json:"seq"`
	CommandSeq *int              `json:"command_seq"`
	Status     domain.Status     `json:"status"`
	Error      *wireErrorPayload `json:"error,omitempty"`
}

// Codec marshals and unmarshals the two wire message kinds, dispatching
// command payloads through a Registry.
type Codec struct {
	Registry *Registry
}

// NewCodec returns a Codec dispatching commands through reg.
func NewCodec(reg *Registry) *Codec {
	return &Codec{Registry: reg}
}

// EncodeRequest renders req as the signed-before-transport wire form. The
// command payload is serialized in storable.ModeNet, which omits any
// private audit fields the command type chooses to hide from the wire.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	cmdRaw, err := c.Registry.EncodeMode(req.Command, storable.ModeNet)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRequest{
		ObjectType: requestObjectType,
		CID:        req.CID,
		Seq:        req.Seq,
		CommandSeq: req.CommandSeq,
		Command:    cmdRaw,
	})
}

// DecodeRequest parses a wire request. An unrecognized _ObjectType, or any
// other decode failure, is reported as ErrParsing — per spec §6 the
// response to a parsing failure has no echoed cid, so callers must not
// assume req is populated when err wraps ErrParsing.
func (c *Codec) DecodeRequest(b []byte) (*domain.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	if w.ObjectType != requestObjectType {
		return nil, fmt.Errorf("%w: unexpected _ObjectType %q", ErrParsing, w.ObjectType)
	}
	cmd, err := c.Registry.Decode(w.Command)
	if err != nil {
		return nil, err
	}
	return &domain.Request{
		CID:        w.CID,
		Seq:        w.Seq,
		CommandSeq: w.CommandSeq,
		Command:    cmd,
	}, nil
}

// EncodeResponse renders resp as the signed-before-transport wire form.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	w := wireResponse{
		ObjectType: responseObjectType,
		CID:        resp.CID,
		Seq:        resp.Seq,
		CommandSeq: resp.CommandSeq,
		Status:     resp.Status,
	}
	if resp.Error != nil {
		w.Error = &wireErrorPayload{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return json.Marshal(w)
}

// DecodeResponse parses a wire response.
func (c *Codec) DecodeResponse(b []byte) (*domain.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}
	if w.ObjectType != responseObjectType {
		return nil, fmt.Errorf("%w: unexpected _ObjectType %q", ErrParsing, w.ObjectType)
	}
	resp := &domain.Response{
		CID:        w.CID,
		Seq:        w.Seq,
		CommandSeq: w.CommandSeq,
		Status:     w.Status,
	}
	if w.Error != nil {
		resp.Error = &domain.ProtocolError{Code: w.Error.Code, Message: w.Error.Message}
	}
	return resp, nil
}
