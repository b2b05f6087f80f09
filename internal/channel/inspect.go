package channel

import (
	"context"

	"github.com/oriys/offchain/internal/domain"
)

// SequenceLen returns the number of commands this channel's executor has
// sequenced so far, counting both pending and committed entries.
func (c *Channel) SequenceLen(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executor.NextSeq(ctx)
}

// LastConfirmed returns the executor's commit cursor: the number of
// sequenced commands that have reached a terminal success/failure outcome.
func (c *Channel) LastConfirmed(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executor.LastConfirmed(ctx)
}

// CommandAt returns the decoded command and commit status sequenced at seq.
func (c *Channel) CommandAt(ctx context.Context, seq int) (domain.Command, domain.CommitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executor.CommandAt(ctx, seq)
}
