package storable

import (
	"context"
	"strconv"

	"github.com/oriys/offchain/internal/kvstore"
)

// List is an append-only, random-access-by-index sequence. Each element is
// stored under its decimal index within ns; the current length is tracked
// in a dedicated length cell so Len and Append don't require a namespace
// scan.
type List[T any] struct {
	store kvstore.Store
	ns    kvstore.Namespace
	codec Codec[T]
	len   *Value[int]
}

// NewList returns a List backed by ns. lengthKey names the cell used to
// track the current length; it must not collide with any index rendered by
// strconv.Itoa.
func NewList[T any](store kvstore.Store, ns kvstore.Namespace, lengthKey string, codec Codec[T]) *List[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	return &List[T]{
		store: store,
		ns:    ns,
		codec: codec,
		len:   NewValue[int](store, ns, lengthKey, JSONCodec[int]{}),
	}
}

// Len returns the number of elements appended so far.
func (l *List[T]) Len(ctx context.Context) (int, error) {
	n, err := l.len.Get(ctx)
	if err == kvstore.ErrNotFound {
		return 0, nil
	}
	return n, err
}

// Get returns the element at index i. i must be in [0, Len).
func (l *List[T]) Get(ctx context.Context, i int) (T, error) {
	var zero T
	raw, err := l.store.Get(ctx, l.ns, strconv.Itoa(i))
	if err != nil {
		return zero, err
	}
	return l.codec.Decode(raw, ModeStore)
}

// Set overwrites the element already present at index i, used when a
// request gains its response after being appended. Requires an open
// transaction scope.
func (l *List[T]) Set(ctx context.Context, i int, val T) error {
	raw, err := l.codec.Encode(val, ModeStore)
	if err != nil {
		return err
	}
	return l.store.Put(ctx, l.ns, strconv.Itoa(i), raw)
}

// Append adds val at the current length and returns its index. Requires an
// open transaction scope.
func (l *List[T]) Append(ctx context.Context, val T) (int, error) {
	n, err := l.Len(ctx)
	if err != nil {
		return 0, err
	}
	if err := l.Set(ctx, n, val); err != nil {
		return 0, err
	}
	if err := l.len.Put(ctx, n+1); err != nil {
		return 0, err
	}
	return n, nil
}
