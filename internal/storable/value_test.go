package storable

import (
	"context"
	"testing"

	"github.com/oriys/offchain/internal/kvstore"
)

func TestValueGetBeforePutReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	v := NewValue[int](store, kvstore.Namespace{"t"}, "n", nil)

	if exists, err := v.Exists(ctx); err != nil || exists {
		t.Fatalf("Exists before Put = %v, %v; want false", exists, err)
	}
	if _, err := v.Get(ctx); err != kvstore.ErrNotFound {
		t.Fatalf("Get before Put = %v, want kvstore.ErrNotFound", err)
	}
}

func TestValuePutThenGetUsesCacheWithoutHittingStore(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	v := NewValue[string](store, kvstore.Namespace{"t"}, "n", nil)

	withTx(t, store, func() {
		if err := v.Put(ctx, "hello"); err != nil {
			t.Fatalf("Put: %v", err)
		}
	})

	if exists, err := v.Exists(ctx); err != nil || !exists {
		t.Fatalf("Exists after Put = %v, %v; want true", exists, err)
	}
	got, err := v.Get(ctx)
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if got != "hello" {
		t.Fatalf("Get = %q, want %q", got, "hello")
	}
}

func TestValueSecondPutReplacesCachedValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	v := NewValue[int](store, kvstore.Namespace{"t"}, "n", nil)

	withTx(t, store, func() {
		if err := v.Put(ctx, 1); err != nil {
			t.Fatalf("Put(1): %v", err)
		}
	})
	withTx(t, store, func() {
		if err := v.Put(ctx, 2); err != nil {
			t.Fatalf("Put(2): %v", err)
		}
	})

	got, err := v.Get(ctx)
	if err != nil || got != 2 {
		t.Fatalf("Get = %d, %v; want 2", got, err)
	}
}

func TestValueDistinctKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	ns := kvstore.Namespace{"t"}
	a := NewValue[int](store, ns, "a", nil)
	b := NewValue[int](store, ns, "b", nil)

	withTx(t, store, func() {
		if err := a.Put(ctx, 1); err != nil {
			t.Fatalf("Put(a): %v", err)
		}
	})

	if exists, err := b.Exists(ctx); err != nil || exists {
		t.Fatalf("Exists(b) = %v, %v; want false, writes to a must not leak into b", exists, err)
	}
}
