package payment

import (
	"testing"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/protocol"
)

func TestNewInitCreatesOneFreshVersion(t *testing.T) {
	init, err := NewInit("alice", "bob", "USD", 500)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	if init.Version.IsZero() {
		t.Fatal("expected a non-zero version")
	}
	if init.DependsOn() != nil {
		t.Fatalf("Init should depend on nothing, got %v", init.DependsOn())
	}
	creates := init.Creates()
	if len(creates) != 1 || creates[0] != init.Version {
		t.Fatalf("expected Creates() = [Version], got %v", creates)
	}
	if init.ObjectType() != InitObjectType {
		t.Fatalf("expected object type %q, got %q", InitObjectType, init.ObjectType())
	}

	obj := init.NewObject(init.Version)
	if obj.Version != init.Version {
		t.Fatalf("NewObject version mismatch: got %v want %v", obj.Version, init.Version)
	}
	if len(obj.Payload) == 0 {
		t.Fatal("expected a non-empty payload")
	}
}

func TestNewAbortDependsOnPriorVersion(t *testing.T) {
	prev, err := domain.NewVersionID()
	if err != nil {
		t.Fatalf("NewVersionID: %v", err)
	}

	abort, err := NewAbort(prev, "compliance hold")
	if err != nil {
		t.Fatalf("NewAbort: %v", err)
	}
	if got := abort.DependsOn(); len(got) != 1 || got[0] != prev {
		t.Fatalf("expected DependsOn() = [prev], got %v", got)
	}
	if abort.Next.IsZero() {
		t.Fatal("expected a fresh next version")
	}
	if abort.Next == prev {
		t.Fatal("next version must differ from the one it supersedes")
	}

	obj := abort.NewObject(abort.Next)
	if len(obj.Extends) != 1 || obj.Extends[0] != prev {
		t.Fatalf("expected Extends() = [prev], got %v", obj.Extends)
	}
}

func TestRegisterRoundTripsThroughTheWireCodec(t *testing.T) {
	reg := protocol.NewRegistry()
	Register(reg)

	init, err := NewInit("alice", "bob", "EUR", 1200)
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}

	raw, err := reg.Encode(init)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := reg.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, ok := decoded.(*Init)
	if !ok {
		t.Fatalf("expected *Init, got %T", decoded)
	}
	if got.Version != init.Version {
		t.Fatalf("version mismatch after round trip: got %v want %v", got.Version, init.Version)
	}
	if got.Sender != init.Sender || got.Receiver != init.Receiver {
		t.Fatalf("sender/receiver mismatch: got %+v want %+v", got, init)
	}
	if got.Amount != init.Amount || got.Currency != init.Currency {
		t.Fatalf("amount/currency mismatch: got %+v want %+v", got, init)
	}
}

func TestRegisterRoundTripsAbort(t *testing.T) {
	reg := protocol.NewRegistry()
	Register(reg)

	prev, _ := domain.NewVersionID()
	abort, err := NewAbort(prev, "fraud review")
	if err != nil {
		t.Fatalf("NewAbort: %v", err)
	}

	raw, err := reg.Encode(abort)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := reg.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.(*Abort)
	if !ok {
		t.Fatalf("expected *Abort, got %T", decoded)
	}
	if got.Depends != abort.Depends || got.Next != abort.Next || got.Reason != abort.Reason {
		t.Fatalf("abort mismatch after round trip: got %+v want %+v", got, abort)
	}
}

func TestDecodeUnknownObjectTypeFails(t *testing.T) {
	reg := protocol.NewRegistry()
	// Intentionally not registering any command kinds.
	_, err := reg.Decode([]byte(`{"_ObjectType":"NotRegistered"}`))
	if err == nil {
		t.Fatal("expected an error decoding an unregistered object type")
	}
}
