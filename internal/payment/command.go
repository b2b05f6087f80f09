// Package payment supplies the one concrete domain.Command family this
// module ships: a minimal payment-initiation/abort pair. The channel and
// executor never inspect these types directly — they exist so the
// protocol registry, the CLI, and the scenario tests have a real command
// to carry, per spec.md's choice to treat command payloads as opaque
// beyond their declared DependsOn/Creates.
package payment

import (
	"fmt"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/protocol"
)

const (
	// InitObjectType tags a newly-initiated payment on the wire.
	InitObjectType = "PaymentInitCommand"
	// AbortObjectType tags an abort of a previously-initiated payment.
	AbortObjectType = "PaymentAbortCommand"
)

// Init starts a payment: it depends on no prior version and creates exactly
// one, carrying the sender/recipient/amount as its opaque payload.
type Init struct {
	Version  domain.VersionID `json:"version"`
	Sender   string           `json:"sender"`
	Receiver string           `json:"receiver"`
	Currency string           `json:"currency"`
	Amount   int64            `json:"amount"`
}

// NewInit returns an Init command creating a fresh version for the given
// payment fields.
func NewInit(sender, receiver, currency string, amount int64) (*Init, error) {
	v, err := domain.NewVersionID()
	if err != nil {
		return nil, fmt.Errorf("new payment version: %w", err)
	}
	return &Init{Version: v, Sender: sender, Receiver: receiver, Currency: currency, Amount: amount}, nil
}

func (c *Init) ObjectType() string            { return InitObjectType }
func (c *Init) DependsOn() []domain.VersionID { return nil }
func (c *Init) Creates() []domain.VersionID   { return []domain.VersionID{c.Version} }

func (c *Init) NewObject(version domain.VersionID) domain.SharedObject {
	payload := fmt.Sprintf("%s>%s %d %s", c.Sender, c.Receiver, c.Amount, c.Currency)
	return domain.SharedObject{Version: version, Payload: []byte(payload)}
}

// Abort cancels a payment previously created by an Init command: it depends
// on that payment's current version and creates a new, terminal version in
// its place.
type Abort struct {
	Depends domain.VersionID `json:"depends"`
	Next    domain.VersionID `json:"next"`
	Reason  string           `json:"reason"`
}

// NewAbort returns an Abort command superseding prev with a new terminal
// version.
func NewAbort(prev domain.VersionID, reason string) (*Abort, error) {
	next, err := domain.NewVersionID()
	if err != nil {
		return nil, fmt.Errorf("new abort version: %w", err)
	}
	return &Abort{Depends: prev, Next: next, Reason: reason}, nil
}

func (c *Abort) ObjectType() string            { return AbortObjectType }
func (c *Abort) DependsOn() []domain.VersionID { return []domain.VersionID{c.Depends} }
func (c *Abort) Creates() []domain.VersionID   { return []domain.VersionID{c.Next} }

func (c *Abort) NewObject(version domain.VersionID) domain.SharedObject {
	return domain.SharedObject{
		Version: version,
		Extends: []domain.VersionID{c.Depends},
		Payload: []byte("aborted: " + c.Reason),
	}
}

// Register adds both command kinds to reg under their wire tags.
func Register(reg *protocol.Registry) {
	reg.Register(InitObjectType, func() domain.Command { return &Init{} })
	reg.Register(AbortObjectType, func() domain.Command { return &Abort{} })
}
