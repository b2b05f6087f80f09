package storable

import (
	"context"
	"fmt"
	"sync"

	"github.com/oriys/offchain/internal/kvstore"
)

// Factory hands out reentrant transaction scopes over a kvstore.Store: the
// outermost scope commits on success and rolls back if any nested scope
// reported failure; inner scopes are no-ops against the store itself. This
// mirrors the original StorableFactory's atomic_writes context manager and
// its "levels" re-entrancy counter.
type Factory struct {
	store kvstore.Store

	mu     sync.Mutex
	levels int
	failed bool
}

// NewFactory returns a Factory writing through store.
func NewFactory(store kvstore.Store) *Factory {
	return &Factory{store: store}
}

// Store returns the underlying KV store, for read-only access outside a
// transaction scope (reads are always permitted).
func (f *Factory) Store() kvstore.Store {
	return f.store
}

// Atomic opens (or joins, if already open) a transaction scope. Every
// Atomic call must be paired with exactly one Commit or Rollback on the
// returned guard.
func (f *Factory) Atomic(ctx context.Context) (*TxGuard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.levels == 0 {
		if err := f.store.Begin(ctx); err != nil {
			return nil, fmt.Errorf("open transaction scope: %w", err)
		}
		f.failed = false
	}
	f.levels++
	return &TxGuard{factory: f}, nil
}

// TxGuard is the reentrant transaction scope token handed out by Atomic.
type TxGuard struct {
	factory *Factory
	closed  bool
}

// Commit closes this scope successfully. If this was the outermost scope
// and no nested scope called Rollback, the underlying store transaction is
// committed; otherwise it is rolled back.
func (g *TxGuard) Commit(ctx context.Context) error {
	return g.close(ctx, false)
}

// Rollback closes this scope as failed. The failure is remembered for the
// outermost scope even if intervening scopes themselves call Commit.
func (g *TxGuard) Rollback(ctx context.Context) error {
	return g.close(ctx, true)
}

func (g *TxGuard) close(ctx context.Context, failed bool) error {
	f := g.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if failed {
		f.failed = true
	}
	f.levels--
	if f.levels > 0 {
		return nil
	}

	if f.failed {
		if err := f.store.Rollback(ctx); err != nil {
			return fmt.Errorf("rollback transaction scope: %w", err)
		}
		return nil
	}
	if err := f.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction scope: %w", err)
	}
	return nil
}
