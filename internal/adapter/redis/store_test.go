package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/wikirace/wikipath/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	return NewStore(c), mr
}

func TestStoreSetGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	val, ok, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(val) != "v" {
		t.Fatalf("expected v, got %s", val)
	}
}

func TestStoreGetMiss(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestStoreExistsAndDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)

	ok, err := store.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}

	ok, err = store.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected key gone after Delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Fatal(err)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)

	d, err := store.TTL(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if d <= 0 || d > time.Minute {
		t.Fatalf("expected ttl in (0, 1m], got %s", d)
	}

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected key expired after FastForward")
	}
}

func TestStoreClearPattern(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	keys := []string{"bfs_visited:s1:A", "bfs_visited:s1:B", "bfs_paths:s1:A", "other"}
	for _, k := range keys {
		_ = store.Set(ctx, k, []byte("1"), time.Minute)
	}

	n, err := store.ClearPattern(ctx, "bfs_visited:s1:*")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	if ok, _ := store.Exists(ctx, "bfs_paths:s1:A"); !ok {
		t.Fatal("unrelated key deleted by ClearPattern")
	}
	if ok, _ := store.Exists(ctx, "other"); !ok {
		t.Fatal("unrelated key deleted by ClearPattern")
	}
}

func TestStoreIncrement(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	v, err := store.Increment(ctx, "ctr", 2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}

	v, err = store.Increment(ctx, "ctr", 3)
	if err != nil {
		t.Fatal(err)
	}
	if v != 5 {
		t.Fatalf("expected 5, got %d", v)
	}
}

func TestStoreSetIfAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "claim", []byte("a"), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first SetIfAbsent to win")
	}

	ok, err = store.SetIfAbsent(ctx, "claim", []byte("b"), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected second SetIfAbsent to lose")
	}

	val, _, _ := store.Get(ctx, "claim")
	if string(val) != "a" {
		t.Fatalf("expected first value preserved, got %s", val)
	}
}

func TestStoreUnavailableKind(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewFromAddr(mr.Addr())
	store := NewStore(c)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	if err == nil {
		t.Fatal("expected error after backend shutdown")
	}
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable kind, got %v", err)
	}
}
