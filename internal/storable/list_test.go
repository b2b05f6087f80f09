package storable

import (
	"context"
	"testing"

	"github.com/oriys/offchain/internal/kvstore"
)

func withTx(t *testing.T, store *kvstore.MemoryStore, fn func()) {
	t.Helper()
	factory := NewFactory(store)
	guard, err := factory.Atomic(context.Background())
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}
	fn()
	if err := guard.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestListAppendAssignsSequentialIndices(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	l := NewList[string](store, kvstore.Namespace{"t"}, "len", nil)

	var indices []int
	withTx(t, store, func() {
		for _, s := range []string{"a", "b", "c"} {
			i, err := l.Append(ctx, s)
			if err != nil {
				t.Fatalf("Append(%q): %v", s, err)
			}
			indices = append(indices, i)
		}
	})

	want := []int{0, 1, 2}
	for i, idx := range indices {
		if idx != want[i] {
			t.Fatalf("Append returned indices %v, want %v", indices, want)
		}
	}

	n, err := l.Len(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v; want 3", n, err)
	}
	for i, want := range []string{"a", "b", "c"} {
		got, err := l.Get(ctx, i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("Get(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestListLenOnEmptyListIsZero(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	l := NewList[int](store, kvstore.Namespace{"t"}, "len", nil)

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatalf("Len on untouched list: %v", err)
	}
	if n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestListSetOverwritesExistingIndex(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	l := NewList[int](store, kvstore.Namespace{"t"}, "len", nil)

	withTx(t, store, func() {
		if _, err := l.Append(ctx, 10); err != nil {
			t.Fatalf("Append: %v", err)
		}
	})
	withTx(t, store, func() {
		if err := l.Set(ctx, 0, 99); err != nil {
			t.Fatalf("Set: %v", err)
		}
	})

	got, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 99 {
		t.Fatalf("Get(0) = %d, want 99 after Set", got)
	}
	n, err := l.Len(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Len = %d, %v; want 1, Set must not change length", n, err)
	}
}

func TestListGetOutOfRangeReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	l := NewList[int](store, kvstore.Namespace{"t"}, "len", nil)

	if _, err := l.Get(ctx, 0); err != kvstore.ErrNotFound {
		t.Fatalf("Get(0) on empty list = %v, want kvstore.ErrNotFound", err)
	}
}

func TestListAppendWithoutTransactionFails(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	l := NewList[int](store, kvstore.Namespace{"t"}, "len", nil)

	if _, err := l.Append(ctx, 1); err == nil {
		t.Fatalf("Append outside a transaction scope succeeded, want an error")
	}
}
