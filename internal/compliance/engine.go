// Package compliance implements the default domain.CommandProcessor /
// domain.BusinessContext pair: the KYC and settlement-readiness policy
// checks the executor's validator calls out to before a command may
// sequence. Each predicate is a single optional hook that the Engine calls
// when it is set.
package compliance

import (
	"context"
	"fmt"

	"github.com/oriys/offchain/internal/domain"
)

// Predicate evaluates one business-context question for cmd. Returning one
// of the domain sentinel errors (ErrDeferred, ErrNotAuthorized, ...)
// signals a business outcome rather than a definitive answer.
type Predicate func(ctx context.Context, cmd domain.Command) error

// BoolPredicate is a Predicate variant answering a yes/no question.
type BoolPredicate func(ctx context.Context, cmd domain.Command) (bool, error)

// Engine is a configurable domain.CommandProcessor and domain.BusinessContext.
// An unset hook passes (nil error, ready for settlement), with three
// exceptions: IsSender and IsRecipient return a "not configured" error and
// HasSettled answers false. Production deployments and tests override only
// the predicates they care about.
type Engine struct {
	ValidateFunc        func(ctx context.Context, cmd domain.Command, isOwn bool) error
	OnSuccess           func(ctx context.Context, cmd domain.Command)
	OnFailure           func(ctx context.Context, cmd domain.Command, reason error)
	IsSenderFn          BoolPredicate
	IsRecipientFn       BoolPredicate
	AccountExistenceFn  Predicate
	RecipientSigFn      Predicate
	NextKYCFn           func(ctx context.Context, cmd domain.Command) ([]string, error)
	NextKYCLevelFn      func(ctx context.Context, cmd domain.Command) (string, error)
	KYCSigFn            Predicate
	ReadyForSettleFn    BoolPredicate
	HasSettledFn        BoolPredicate
}

// NewEngine returns a permissive Engine; callers assign the hooks they
// need before wiring it into a registry.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Validate(ctx context.Context, cmd domain.Command, isOwn bool) error {
	if e.ValidateFunc == nil {
		return nil
	}
	return e.ValidateFunc(ctx, cmd, isOwn)
}

func (e *Engine) ProcessSuccess(ctx context.Context, cmd domain.Command) {
	if e.OnSuccess != nil {
		e.OnSuccess(ctx, cmd)
	}
}

func (e *Engine) ProcessFailure(ctx context.Context, cmd domain.Command, reason error) {
	if e.OnFailure != nil {
		e.OnFailure(ctx, cmd, reason)
	}
}

func (e *Engine) BusinessContext() domain.BusinessContext {
	return e
}

func (e *Engine) IsSender(ctx context.Context, cmd domain.Command) (bool, error) {
	if e.IsSenderFn == nil {
		return false, fmt.Errorf("compliance: IsSender not configured")
	}
	return e.IsSenderFn(ctx, cmd)
}

func (e *Engine) IsRecipient(ctx context.Context, cmd domain.Command) (bool, error) {
	if e.IsRecipientFn == nil {
		return false, fmt.Errorf("compliance: IsRecipient not configured")
	}
	return e.IsRecipientFn(ctx, cmd)
}

func (e *Engine) CheckAccountExistence(ctx context.Context, cmd domain.Command) error {
	if e.AccountExistenceFn == nil {
		return nil
	}
	return e.AccountExistenceFn(ctx, cmd)
}

func (e *Engine) ValidateRecipientSignature(ctx context.Context, cmd domain.Command) error {
	if e.RecipientSigFn == nil {
		return nil
	}
	return e.RecipientSigFn(ctx, cmd)
}

func (e *Engine) NextKYCToProvide(ctx context.Context, cmd domain.Command) ([]string, error) {
	if e.NextKYCFn == nil {
		return nil, nil
	}
	return e.NextKYCFn(ctx, cmd)
}

func (e *Engine) NextKYCLevelToRequest(ctx context.Context, cmd domain.Command) (string, error) {
	if e.NextKYCLevelFn == nil {
		return "", nil
	}
	return e.NextKYCLevelFn(ctx, cmd)
}

func (e *Engine) ValidateKYCSignature(ctx context.Context, cmd domain.Command) error {
	if e.KYCSigFn == nil {
		return nil
	}
	return e.KYCSigFn(ctx, cmd)
}

func (e *Engine) ReadyForSettlement(ctx context.Context, cmd domain.Command) (bool, error) {
	if e.ReadyForSettleFn == nil {
		return true, nil
	}
	return e.ReadyForSettleFn(ctx, cmd)
}

func (e *Engine) HasSettled(ctx context.Context, cmd domain.Command) (bool, error) {
	if e.HasSettledFn == nil {
		return false, nil
	}
	return e.HasSettledFn(ctx, cmd)
}
