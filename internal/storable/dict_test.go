package storable

import (
	"context"
	"sort"
	"testing"

	"github.com/oriys/offchain/internal/kvstore"
)

func TestDictPutGetContainsDelete(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	d := NewDict[int](store, kvstore.Namespace{"t"}, nil)

	if ok, err := d.Contains(ctx, "a"); err != nil || ok {
		t.Fatalf("Contains(a) before Put = %v, %v; want false", ok, err)
	}

	withTx(t, store, func() {
		if err := d.Put(ctx, "a", 1); err != nil {
			t.Fatalf("Put(a): %v", err)
		}
		if err := d.Put(ctx, "b", 2); err != nil {
			t.Fatalf("Put(b): %v", err)
		}
	})

	if ok, err := d.Contains(ctx, "a"); err != nil || !ok {
		t.Fatalf("Contains(a) after Put = %v, %v; want true", ok, err)
	}
	got, err := d.Get(ctx, "a")
	if err != nil || got != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1", got, err)
	}

	withTx(t, store, func() {
		if err := d.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete(a): %v", err)
		}
	})
	if ok, err := d.Contains(ctx, "a"); err != nil || ok {
		t.Fatalf("Contains(a) after Delete = %v, %v; want false", ok, err)
	}
	if _, err := d.Get(ctx, "a"); err != kvstore.ErrNotFound {
		t.Fatalf("Get(a) after Delete = %v, want kvstore.ErrNotFound", err)
	}
}

func TestDictKeysAndLen(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	d := NewDict[string](store, kvstore.Namespace{"t"}, nil)

	withTx(t, store, func() {
		for k, v := range map[string]string{"x": "1", "y": "2", "z": "3"} {
			if err := d.Put(ctx, k, v); err != nil {
				t.Fatalf("Put(%s): %v", k, err)
			}
		}
	})

	n, err := d.Len(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v; want 3", n, err)
	}

	keys, err := d.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"x", "y", "z"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}

func TestDictGetMissingKeyReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	d := NewDict[int](store, kvstore.Namespace{"t"}, nil)

	if _, err := d.Get(ctx, "absent"); err != kvstore.ErrNotFound {
		t.Fatalf("Get(absent) = %v, want kvstore.ErrNotFound", err)
	}
}

func TestDictPutWithoutTransactionFails(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	d := NewDict[int](store, kvstore.Namespace{"t"}, nil)

	if err := d.Put(ctx, "a", 1); err == nil {
		t.Fatalf("Put outside a transaction scope succeeded, want an error")
	}
}
