package storable

import (
	"context"

	"github.com/oriys/offchain/internal/kvstore"
)

// Dict is a string-keyed map with iteration, used for the executor's
// object_store (keyed by hex version id).
type Dict[T any] struct {
	store kvstore.Store
	ns    kvstore.Namespace
	codec Codec[T]
}

// NewDict returns a Dict backed by ns.
func NewDict[T any](store kvstore.Store, ns kvstore.Namespace, codec Codec[T]) *Dict[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	return &Dict[T]{store: store, ns: ns, codec: codec}
}

// Get returns kvstore.ErrNotFound if key is absent.
func (d *Dict[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	raw, err := d.store.Get(ctx, d.ns, key)
	if err != nil {
		return zero, err
	}
	return d.codec.Decode(raw, ModeStore)
}

func (d *Dict[T]) Contains(ctx context.Context, key string) (bool, error) {
	return d.store.Contains(ctx, d.ns, key)
}

// Put requires an open transaction scope.
func (d *Dict[T]) Put(ctx context.Context, key string, val T) error {
	raw, err := d.codec.Encode(val, ModeStore)
	if err != nil {
		return err
	}
	return d.store.Put(ctx, d.ns, key, raw)
}

// Delete requires an open transaction scope.
func (d *Dict[T]) Delete(ctx context.Context, key string) error {
	return d.store.Delete(ctx, d.ns, key)
}

// Keys returns every key currently in the dict, in unspecified order.
func (d *Dict[T]) Keys(ctx context.Context) ([]string, error) {
	return d.store.IterateKeys(ctx, d.ns)
}

// Len returns the number of entries currently in the dict.
func (d *Dict[T]) Len(ctx context.Context) (int, error) {
	return d.store.Count(ctx, d.ns)
}
