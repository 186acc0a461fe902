package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	before := time.Now()
	if err := s.Set(ctx, "k", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	e, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(e.Data) != `{"v":1}` {
		t.Fatalf("data = %s", e.Data)
	}
	if e.Timestamp.Before(before) || e.Timestamp.After(time.Now()) {
		t.Fatalf("timestamp out of range: %v", e.Timestamp)
	}

	if err := s.Invalidate(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry survived invalidation")
	}

	// Invalidating a missing key is not an error.
	if err := s.Invalidate(ctx, "k"); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryStoreNegativeEntry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "neg", nil); err != nil {
		t.Fatal(err)
	}
	e, ok, err := s.Get(ctx, "neg")
	if err != nil || !ok {
		t.Fatalf("expected negative hit, got ok=%v err=%v", ok, err)
	}
	if e.Data != nil {
		t.Fatalf("negative entry data = %s, want nil", e.Data)
	}

	// A JSON null payload is normalized to the same negative shape.
	if err := s.Set(ctx, "neg2", []byte("null")); err != nil {
		t.Fatal(err)
	}
	e, _, _ = s.Get(ctx, "neg2")
	if e.Data != nil {
		t.Fatalf("null payload not normalized: %s", e.Data)
	}
}

func TestMemoryStoreConcurrentWriters(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Set(ctx, "shared", []byte(`{"v":2}`))
				_, _, _ = s.Get(ctx, "shared")
				_ = s.Invalidate(ctx, "other")
			}
		}()
	}
	wg.Wait()
}
