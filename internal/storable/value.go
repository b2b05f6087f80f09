package storable

import (
	"context"

	"github.com/oriys/offchain/internal/kvstore"
)

// Value is a single typed cell with an in-memory read cache, valid until
// the next successful Put.
type Value[T any] struct {
	store kvstore.Store
	ns    kvstore.Namespace
	key   string
	codec Codec[T]

	cached   *T
	hasCache bool
}

// NewValue returns a Value backed by key within ns.
func NewValue[T any](store kvstore.Store, ns kvstore.Namespace, key string, codec Codec[T]) *Value[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	return &Value[T]{store: store, ns: ns, key: key, codec: codec}
}

// Get returns the current value, or kvstore.ErrNotFound if it was never
// set.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if v.hasCache {
		return *v.cached, nil
	}
	raw, err := v.store.Get(ctx, v.ns, v.key)
	if err != nil {
		return zero, err
	}
	val, err := v.codec.Decode(raw, ModeStore)
	if err != nil {
		return zero, err
	}
	v.cached = &val
	v.hasCache = true
	return val, nil
}

// Exists reports whether the cell has ever been set.
func (v *Value[T]) Exists(ctx context.Context) (bool, error) {
	if v.hasCache {
		return true, nil
	}
	return v.store.Contains(ctx, v.ns, v.key)
}

// Put requires an open transaction scope (via Factory.Atomic) on the
// underlying store.
func (v *Value[T]) Put(ctx context.Context, val T) error {
	raw, err := v.codec.Encode(val, ModeStore)
	if err != nil {
		return err
	}
	if err := v.store.Put(ctx, v.ns, v.key, raw); err != nil {
		return err
	}
	v.cached = &val
	v.hasCache = true
	return nil
}
