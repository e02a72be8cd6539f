package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "embed:abc", []byte("payload"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := store.Get(ctx, "embed:abc")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Get() = %q, want %q", got, "payload")
	}

	exists, err := store.Exists(ctx, "embed:abc")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true, nil", exists, err)
	}
}

func TestMemoryStoreMissReturnsNil(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()

	got, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() on miss returned error: %v", err)
	}
	if got != nil {
		t.Errorf("Get() on miss = %v, want nil", got)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "short-lived", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	got, err := store.Get(ctx, "short-lived")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expired entry still returned: %q", got)
	}

	exists, _ := store.Exists(ctx, "short-lived")
	if exists {
		t.Error("Exists() = true for expired entry")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Errorf("Get() after delete = %q, want nil", got)
	}
	// Deleting again must not error.
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() of absent key error: %v", err)
	}
}

func TestMemoryStoreKeysPrefix(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	for _, key := range []string{"embed:a", "embed:b", "meta:c"} {
		if err := store.Set(ctx, key, []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.Keys(ctx, "embed:")
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys(embed:) returned %d keys, want 2: %v", len(keys), keys)
	}

	all, err := store.Keys(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Keys(\"\") returned %d keys, want 3", len(all))
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("original"), 0); err != nil {
		t.Fatal(err)
	}

	first, _ := store.Get(ctx, "k")
	first[0] = 'X'

	second, _ := store.Get(ctx, "k")
	if string(second) != "original" {
		t.Errorf("stored value mutated through returned slice: %q", second)
	}
}
