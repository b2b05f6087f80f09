package protocol_test

import (
	"errors"
	"testing"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/payment"
	"github.com/oriys/offchain/internal/protocol"
)

func newCodec(t *testing.T) *protocol.Codec {
	t.Helper()
	reg := protocol.NewRegistry()
	payment.Register(reg)
	return protocol.NewCodec(reg)
}

func TestCodecRequestRoundTrip(t *testing.T) {
	codec := newCodec(t)
	cmd, err := payment.NewInit("alice", "bob", "USD", 250)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	seq := 3
	req := &domain.Request{CID: "cid-1", Seq: 0, CommandSeq: &seq, Command: cmd}

	raw, err := codec.EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := codec.DecodeRequest(raw)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.CID != req.CID || got.Seq != req.Seq {
		t.Fatalf("DecodeRequest = %+v, want CID/Seq matching %+v", got, req)
	}
	if got.CommandSeq == nil || *got.CommandSeq != seq {
		t.Fatalf("DecodeRequest CommandSeq = %v, want %d", got.CommandSeq, seq)
	}
	decoded, ok := got.Command.(*payment.Init)
	if !ok {
		t.Fatalf("DecodeRequest command = %T, want *payment.Init", got.Command)
	}
	if decoded.Sender != cmd.Sender || decoded.Version != cmd.Version {
		t.Fatalf("decoded command = %+v, want %+v", decoded, cmd)
	}
}

func TestCodecRequestWithoutCommandSeqRoundTrips(t *testing.T) {
	codec := newCodec(t)
	cmd, err := payment.NewInit("alice", "bob", "USD", 1)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	req := &domain.Request{CID: "cid-2", Seq: 0, Command: cmd}

	raw, err := codec.EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := codec.DecodeRequest(raw)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.CommandSeq != nil {
		t.Fatalf("CommandSeq = %v, want nil (unsequenced request)", got.CommandSeq)
	}
}

func TestCodecResponseRoundTripSuccess(t *testing.T) {
	codec := newCodec(t)
	seq := 5
	resp := &domain.Response{CID: "cid-3", Seq: 0, CommandSeq: &seq, Status: domain.StatusSuccess}

	raw, err := codec.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := codec.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.Status != domain.StatusSuccess || got.Error != nil {
		t.Fatalf("DecodeResponse = %+v, want success with no error", got)
	}
	if got.CommandSeq == nil || *got.CommandSeq != seq {
		t.Fatalf("DecodeResponse CommandSeq = %v, want %d", got.CommandSeq, seq)
	}
}

func TestCodecResponseRoundTripProtocolError(t *testing.T) {
	codec := newCodec(t)
	resp := &domain.Response{
		CID:    "cid-4",
		Status: domain.StatusFailure,
		Error:  &domain.ProtocolError{Code: domain.ErrCodeConflict, Message: "seq already used"},
	}

	raw, err := codec.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := codec.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !got.IsProtocolError() {
		t.Fatalf("DecodeResponse = %+v, want IsProtocolError() true", got)
	}
	if got.Error.Code != domain.ErrCodeConflict || got.Error.Message != "seq already used" {
		t.Fatalf("Error = %+v, want conflict with the original message", got.Error)
	}
}

func TestCodecDecodeRequestRejectsWrongObjectType(t *testing.T) {
	codec := newCodec(t)
	_, err := codec.DecodeRequest([]byte(`{"_ObjectType":"CommandResponseObject"}`))
	if !errors.Is(err, protocol.ErrParsing) {
		t.Fatalf("DecodeRequest on a response envelope = %v, want ErrParsing", err)
	}
}

func TestCodecDecodeResponseRejectsWrongObjectType(t *testing.T) {
	codec := newCodec(t)
	_, err := codec.DecodeResponse([]byte(`{"_ObjectType":"CommandRequestObject"}`))
	if !errors.Is(err, protocol.ErrParsing) {
		t.Fatalf("DecodeResponse on a request envelope = %v, want ErrParsing", err)
	}
}

func TestCodecDecodeRequestWithUnregisteredCommandFails(t *testing.T) {
	codec := newCodec(t)
	raw := []byte(`{"_ObjectType":"CommandRequestObject","cid":"x","seq":0,"command":{"_ObjectType":"NotRegistered"}}`)
	if _, err := codec.DecodeRequest(raw); !errors.Is(err, protocol.ErrParsing) {
		t.Fatalf("DecodeRequest with an unregistered command = %v, want ErrParsing", err)
	}
}
