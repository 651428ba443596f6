package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"obligations/internal/core"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if n := NewJanitor(c).Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}
}

type countingDirectory struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (d *countingDirectory) GetCategory(_ context.Context, id string) (core.Category, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if id == "missing" {
		return core.Category{}, core.NotFound("directory.category", "category", id)
	}
	return core.Category{ID: id, Name: "Servicios"}, nil
}

func (d *countingDirectory) GetProject(_ context.Context, id string) (core.Project, error) {
	d.calls.Add(1)
	return core.Project{ID: id}, nil
}

func (d *countingDirectory) GetSupplier(_ context.Context, id string) (core.Supplier, error) {
	d.calls.Add(1)
	return core.Supplier{ID: id}, nil
}

func TestDirectoryCachesHits(t *testing.T) {
	next := &countingDirectory{}
	d := NewDirectory(next, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c, err := d.GetCategory(ctx, "cat-1")
		if err != nil || c.Name != "Servicios" {
			t.Fatalf("category: %+v %v", c, err)
		}
	}
	if _, err := d.GetProject(ctx, "cat-1"); err != nil {
		t.Fatal(err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("backend calls = %d, want 2", got)
	}
}

func TestDirectoryDoesNotCacheErrors(t *testing.T) {
	next := &countingDirectory{}
	d := NewDirectory(next, 16, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := d.GetCategory(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Fatalf("backend calls = %d, want 2", got)
	}
}

func TestDirectoryCoalescesConcurrentMisses(t *testing.T) {
	next := &countingDirectory{gate: make(chan struct{})}
	d := NewDirectory(next, 16, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.GetCategory(context.Background(), "cat-1"); err != nil {
				t.Errorf("category: %v", err)
			}
		}()
	}
	// Let the goroutines pile up behind the first call.
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()

	if got := next.calls.Load(); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
}
