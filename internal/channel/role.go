package channel

import (
	"errors"

	"github.com/oriys/offchain/internal/domain"
)

// ErrSelfChannel is returned by AssignRole when self and peer are the same
// address.
var ErrSelfChannel = errors.New("channel: cannot open a channel to oneself")

// AssignRole derives which of self/peer acts as client from the addresses
// alone, so both sides compute identical roles without negotiation. See
// spec §4.5: the XOR of the two addresses' low bits picks the
// discriminator. When the bits agree the greater address is client; when
// they differ the lesser one is. Swapping the parties leaves the XOR
// unchanged and reverses the comparison, so exactly one side ever
// computes client.
func AssignRole(self, peer domain.Address) (isClient bool, err error) {
	if self.Equal(peer) {
		return false, ErrSelfChannel
	}
	b := self.LastBit() ^ peer.LastBit()
	if b == 0 {
		return self.Compare(peer) >= 0, nil
	}
	return self.Compare(peer) < 0, nil
}
