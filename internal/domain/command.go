package domain

import (
	"context"
	"errors"
)

// CommitStatus is the lifecycle state of a sequenced command.
type CommitStatus string

const (
	CommitPending CommitStatus = "pending"
	CommitSuccess CommitStatus = "success"
	CommitFailed  CommitStatus = "failed"
)

// Command is the closed-sum-type trait every wire-tagged command kind
// implements. The concrete variants live alongside the business code that
// defines them; the executor and channel only ever see this interface.
type Command interface {
	// ObjectType is the wire "_ObjectType" discriminator for this command
	// kind, used by the protocol codec to select a decoder.
	ObjectType() string
	// DependsOn lists versions this command consumes. Must be disjoint
	// from Creates.
	DependsOn() []VersionID
	// Creates lists versions this command will introduce.
	Creates() []VersionID
	// NewObject builds the SharedObject for one of the versions in
	// Creates, once the command has been accepted for sequencing.
	NewObject(version VersionID) SharedObject
}

// Sequenced pairs a Command with its executor-assigned bookkeeping. It is
// the unit stored in the executor's command_sequence.
type Sequenced struct {
	Command Command
	Status  CommitStatus
}

// Sentinel business-outcome errors a CommandProcessor may return from
// Validate or from any BusinessContext predicate. The executor and channel
// compare against these with errors.Is rather than inspecting exception
// types, per the re-architecture guidance of treating async/abort flow as
// returned values.
var (
	// ErrDeferred means the business layer cannot answer yet; the caller
	// should retry later (e.g. on an external nudge).
	ErrDeferred = errors.New("business: deferred")
	// ErrNotAuthorized means a KYC or compliance policy refused the
	// command; this is a permanent failure.
	ErrNotAuthorized = errors.New("business: not authorized")
	// ErrValidationFailure means the command fails a business-level
	// validity check; it will commit with status failed.
	ErrValidationFailure = errors.New("business: validation failure")
	// ErrForceAbort means the business layer is aborting the payment;
	// the command commits with status failed.
	ErrForceAbort = errors.New("business: force abort")
)

// CommandProcessor is the application-level collaborator the channel and
// executor invoke to validate commands and to react to their outcome. The
// core treats command payloads as opaque beyond DependsOn/Creates; all
// semantic validity lives behind this interface.
type CommandProcessor interface {
	// Validate runs the business check for cmd. isOwn is true when this
	// side is speculatively sequencing its own submission, false when
	// confirming a peer's request. Any of the sentinel errors above (or a
	// wrapped form of them) is treated as a business outcome rather than
	// a fatal error.
	Validate(ctx context.Context, cmd Command, isOwn bool) error
	// ProcessSuccess runs side effects once cmd has committed.
	ProcessSuccess(ctx context.Context, cmd Command)
	// ProcessFailure runs side effects once cmd has committed as failed.
	ProcessFailure(ctx context.Context, cmd Command, reason error)
	// BusinessContext exposes the KYC/settlement predicate surface.
	BusinessContext() BusinessContext
}

// BusinessContext supplies the payment-specific predicates the executor's
// validator needs. Each predicate may return one of the sentinel business
// errors above instead of a definitive answer.
type BusinessContext interface {
	IsSender(ctx context.Context, cmd Command) (bool, error)
	IsRecipient(ctx context.Context, cmd Command) (bool, error)
	CheckAccountExistence(ctx context.Context, cmd Command) error
	ValidateRecipientSignature(ctx context.Context, cmd Command) error
	NextKYCToProvide(ctx context.Context, cmd Command) ([]string, error)
	NextKYCLevelToRequest(ctx context.Context, cmd Command) (string, error)
	ValidateKYCSignature(ctx context.Context, cmd Command) error
	ReadyForSettlement(ctx context.Context, cmd Command) (bool, error)
	HasSettled(ctx context.Context, cmd Command) (bool, error)
}
