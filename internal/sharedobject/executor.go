// Package sharedobject implements the versioned object store and command
// sequencer at the heart of a channel (spec component C3), faithfully
// following the speculative/committed liveness split of the original
// reference executor.
package sharedobject

import (
	"context"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/kvstore"
	"github.com/oriys/offchain/internal/metrics"
	"github.com/oriys/offchain/internal/storable"
)

// CommandCodec turns a domain.Command into durable bytes and back. The
// concrete implementation (internal/protocol's wire-tag registry) is
// supplied by the caller so this package never needs to know about the
// closed set of command kinds.
type CommandCodec interface {
	Encode(cmd domain.Command) ([]byte, error)
	Decode(b []byte) (domain.Command, error)
}

// storedCommand is the persisted shape of one command_sequence entry.
type storedCommand struct {
	Raw    []byte              `json:"raw"`
	Status domain.CommitStatus `json:"status"`
}

// Executor maintains object_store, command_sequence and last_confirmed for
// one channel.
type Executor struct {
	codec     CommandCodec
	processor domain.CommandProcessor

	objects       *storable.Dict[domain.SharedObject]
	sequence      *storable.List[storedCommand]
	lastConfirmed *storable.Value[int]
}

// NewExecutor returns an Executor persisting under ns in store. processor
// may be nil, in which case Validate/ProcessSuccess/ProcessFailure are
// skipped (used by tests exercising the executor in isolation).
func NewExecutor(store kvstore.Store, ns kvstore.Namespace, codec CommandCodec, processor domain.CommandProcessor) *Executor {
	return &Executor{
		codec:         codec,
		processor:     processor,
		objects:       storable.NewDict[domain.SharedObject](store, ns.Child("object_store"), nil),
		sequence:      storable.NewList[storedCommand](store, ns.Child("command_sequence"), "__len__", nil),
		lastConfirmed: storable.NewValue[int](store, ns, "last_confirmed", nil),
	}
}

// NextSeq returns the next command_seq that will be assigned, equal to the
// current length of command_sequence.
func (e *Executor) NextSeq(ctx context.Context) (int, error) {
	return e.sequence.Len(ctx)
}

// LastConfirmed returns the executor's commit cursor.
func (e *Executor) LastConfirmed(ctx context.Context) (int, error) {
	n, err := e.lastConfirmed.Get(ctx)
	if err == kvstore.ErrNotFound {
		return 0, nil
	}
	return n, err
}

// Object returns the current revision stored under v.
func (e *Executor) Object(ctx context.Context, v domain.VersionID) (domain.SharedObject, error) {
	return e.objects.Get(ctx, v.String())
}

// SequenceNextCommand validates cmd's dependencies and invokes the command
// processor, then appends cmd to command_sequence and brings its Creates
// versions speculatively alive.
//
// liveness selects which flag a dependency must satisfy: Speculative for a
// locally-submitted command not yet confirmed by the peer, Committed when
// confirming a peer's request.
//
// If doNotSequenceErrors is true, any error aborts before the command is
// appended at all (used for local speculative submission, where a failed
// command must never be emitted). If false, the command is appended
// regardless of error so that global ordering still advances; the caller
// is expected to report the error as a business-level commit failure via
// SetFail rather than as a protocol-level rejection.
func (e *Executor) SequenceNextCommand(ctx context.Context, cmd domain.Command, liveness domain.Liveness, doNotSequenceErrors bool) (int, error) {
	var outcome error

	for _, v := range cmd.DependsOn() {
		obj, err := e.objects.Get(ctx, v.String())
		switch {
		case err == kvstore.ErrNotFound:
			outcome = fmt.Errorf("%w: %s", ErrMissingDependency, v)
		case err != nil:
			return 0, err
		case !obj.Satisfies(liveness):
			outcome = fmt.Errorf("%w: %s", ErrMissingDependency, v)
		}
		if outcome != nil {
			break
		}
	}

	if outcome == nil && e.processor != nil {
		isOwn := liveness == domain.Speculative
		if err := e.processor.Validate(ctx, cmd, isOwn); err != nil {
			outcome = fmt.Errorf("%w: %w", ErrBusinessValidation, err)
		}
	}

	if outcome != nil && doNotSequenceErrors {
		return 0, outcome
	}

	raw, err := e.codec.Encode(cmd)
	if err != nil {
		return 0, fmt.Errorf("encode command: %w", err)
	}
	idx, err := e.sequence.Append(ctx, storedCommand{Raw: raw, Status: domain.CommitPending})
	if err != nil {
		return 0, fmt.Errorf("append command: %w", err)
	}
	metrics.Global().RecordSequenced()
	for _, v := range cmd.Creates() {
		obj := cmd.NewObject(v)
		obj.PotentiallyLive = true
		if err := e.objects.Put(ctx, v.String(), obj); err != nil {
			return 0, fmt.Errorf("create object %s: %w", v, err)
		}
	}

	return idx, outcome
}

// SetSuccess commits the command at seq, which must equal LastConfirmed.
// Its DependsOn versions are deleted from the object store and its Creates
// versions become actually live.
func (e *Executor) SetSuccess(ctx context.Context, seq int) error {
	return e.finalize(ctx, seq, domain.CommitSuccess)
}

// SetFail commits the command at seq as failed. Its Creates versions are
// removed from the object store (they never become live); DependsOn
// versions are left untouched since the command never consumed them.
func (e *Executor) SetFail(ctx context.Context, seq int, reason error) error {
	return e.finalizeWithReason(ctx, seq, domain.CommitFailed, reason)
}

func (e *Executor) finalize(ctx context.Context, seq int, status domain.CommitStatus) error {
	return e.finalizeWithReason(ctx, seq, status, nil)
}

func (e *Executor) finalizeWithReason(ctx context.Context, seq int, status domain.CommitStatus, reason error) error {
	last, err := e.LastConfirmed(ctx)
	if err != nil {
		return err
	}
	if seq != last {
		return fmt.Errorf("%w: seq=%d last_confirmed=%d", ErrOutOfOrder, seq, last)
	}

	entry, err := e.sequence.Get(ctx, seq)
	if err != nil {
		return fmt.Errorf("load command %d: %w", seq, err)
	}
	cmd, err := e.codec.Decode(entry.Raw)
	if err != nil {
		return fmt.Errorf("decode command %d: %w", seq, err)
	}

	switch status {
	case domain.CommitSuccess:
		for _, v := range cmd.DependsOn() {
			if err := e.objects.Delete(ctx, v.String()); err != nil && err != kvstore.ErrNotFound {
				return fmt.Errorf("retire dependency %s: %w", v, err)
			}
		}
		for _, v := range cmd.Creates() {
			obj, err := e.objects.Get(ctx, v.String())
			if err != nil {
				return fmt.Errorf("load created object %s: %w", v, err)
			}
			obj.ActuallyLive = true
			obj.PotentiallyLive = true
			if err := e.objects.Put(ctx, v.String(), obj); err != nil {
				return fmt.Errorf("commit created object %s: %w", v, err)
			}
		}
	case domain.CommitFailed:
		for _, v := range cmd.Creates() {
			if err := e.objects.Delete(ctx, v.String()); err != nil && err != kvstore.ErrNotFound {
				return fmt.Errorf("discard uncommitted object %s: %w", v, err)
			}
		}
	}

	entry.Status = status
	if err := e.sequence.Set(ctx, seq, entry); err != nil {
		return fmt.Errorf("record command %d status: %w", seq, err)
	}
	if err := e.lastConfirmed.Put(ctx, last+1); err != nil {
		return fmt.Errorf("advance last_confirmed: %w", err)
	}

	if e.processor != nil {
		switch status {
		case domain.CommitSuccess:
			e.processor.ProcessSuccess(ctx, cmd)
		case domain.CommitFailed:
			e.processor.ProcessFailure(ctx, cmd, reason)
		}
	}
	metrics.Global().RecordCommit(status == domain.CommitSuccess)
	metrics.RecordPrometheusCommit(status == domain.CommitSuccess)
	return nil
}

// CommandAt returns the decoded command and current status stored at seq.
func (e *Executor) CommandAt(ctx context.Context, seq int) (domain.Command, domain.CommitStatus, error) {
	entry, err := e.sequence.Get(ctx, seq)
	if err != nil {
		return nil, "", err
	}
	cmd, err := e.codec.Decode(entry.Raw)
	if err != nil {
		return nil, "", err
	}
	return cmd, entry.Status, nil
}
