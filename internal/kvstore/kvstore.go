// Package kvstore implements the transactional, namespaced key-value store
// every channel's persistent state is built on (spec component C1). Callers
// never write outside an explicit Begin/Commit window; nested scopes are the
// concern of the internal/storable package layered on top.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Delete when the key does not exist in
// the namespace.
var ErrNotFound = errors.New("kvstore: not found")

// ErrNoTransaction is returned by Put/Delete when called outside an
// explicit Begin/Commit window.
var ErrNoTransaction = errors.New("kvstore: write outside transaction")

// ErrTransactionInProgress is returned by Begin when a transaction is
// already open on this store handle.
var ErrTransactionInProgress = errors.New("kvstore: transaction already in progress")

// Namespace is a hierarchical path identifying one logical collection of
// keys, e.g. {"", selfAddr, peerAddr, "my_requests"}. Two different paths
// never collide, regardless of the literal bytes they contain, because the
// store hashes the full joined path before using it as a namespace key.
type Namespace []string

// Child returns a new namespace extending ns with one more path segment,
// leaving ns itself untouched.
func (ns Namespace) Child(seg string) Namespace {
	out := make(Namespace, len(ns)+1)
	copy(out, ns)
	out[len(ns)] = seg
	return out
}

// Store is a namespaced, transactional key-value map. A single Store value
// may be shared by many channels; each channel uses its own Namespace so
// their keys never collide.
type Store interface {
	// Begin opens a transaction window. Returns ErrTransactionInProgress
	// if one is already open on this handle.
	Begin(ctx context.Context) error
	// Commit durably applies every write made since Begin and closes the
	// window.
	Commit(ctx context.Context) error
	// Rollback discards every write made since Begin and closes the
	// window.
	Rollback(ctx context.Context) error

	// Get returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	// Put fails with ErrNoTransaction outside a Begin/Commit window.
	Put(ctx context.Context, ns Namespace, key string, value []byte) error
	// Delete fails with ErrNoTransaction outside a Begin/Commit window.
	// Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, ns Namespace, key string) error
	Contains(ctx context.Context, ns Namespace, key string) (bool, error)
	IterateKeys(ctx context.Context, ns Namespace) ([]string, error)
	Count(ctx context.Context, ns Namespace) (int, error)
}
