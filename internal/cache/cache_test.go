package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clk *fakeClock) *Cache {
	return New(Options{StaleTime: 30 * time.Second, FetchTimeout: time.Second, Now: clk.Now})
}

var projectsKey = Key{"projects"}

func TestKey(t *testing.T) {
	k := Key{"issues", "project", "prj-1"}
	if k.String() != "issues/project/prj-1" {
		t.Errorf("String = %q", k.String())
	}
	if !k.HasPrefix(Key{"issues"}) || !k.HasPrefix(nil) || k.HasPrefix(Key{"projects"}) {
		t.Error("HasPrefix mismatch")
	}
	if (Key{"issues"}).HasPrefix(k) {
		t.Error("shorter key cannot have a longer prefix")
	}
}

func TestFetch_ConcurrentCallsShareOneRequest(t *testing.T) {
	c := newTestCache(newFakeClock())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []string{"a"}, nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.Fetch(context.Background(), projectsKey, fn)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Fetch(context.Background(), projectsKey, fn)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	for i, r := range results {
		if diff := cmp.Diff([]string{"a"}, r); diff != "" {
			t.Errorf("result %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestFetch_FreshDataServedFromCache(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache(clk)
	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), projectsKey, fn); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls within stale time = %d, want 1", n)
	}
	if s := c.Peek(projectsKey); s.Status != StatusFresh {
		t.Errorf("status = %s, want fresh", s.Status)
	}

	clk.Advance(31 * time.Second)
	if s := c.Peek(projectsKey); s.Status != StatusStale {
		t.Errorf("status after stale time = %s, want stale", s.Status)
	}
	if _, err := c.Fetch(context.Background(), projectsKey, fn); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls after stale time = %d, want 2", n)
	}
}

func TestFetch_ErrorRetainsData(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, "good")
	c.Invalidate(projectsKey)

	boom := errors.New("network down")
	data, err := c.Fetch(context.Background(), projectsKey, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if data != "good" {
		t.Errorf("data = %v, want previous data", data)
	}
	s := c.Peek(projectsKey)
	if s.Status != StatusError || !s.HasData || s.Data != "good" {
		t.Errorf("snapshot = %+v", s)
	}

	// The next fetch retries and clears the error.
	if _, err := c.Fetch(context.Background(), projectsKey, func(ctx context.Context) (any, error) {
		return "better", nil
	}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if s := c.Peek(projectsKey); s.Status != StatusFresh || s.Data != "better" {
		t.Errorf("snapshot after retry = %+v", s)
	}
}

func TestFetch_TimeoutIsFailure(t *testing.T) {
	c := New(Options{FetchTimeout: 20 * time.Millisecond, Now: newFakeClock().Now})
	_, err := c.Fetch(context.Background(), projectsKey, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if s := c.Peek(projectsKey); s.Status != StatusError {
		t.Errorf("status = %s, want error", s.Status)
	}
}

func TestFetch_CallerContextOnlyBoundsWaiting(t *testing.T) {
	c := newTestCache(newFakeClock())
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, projectsKey, func(context.Context) (any, error) {
			<-release
			return "late", nil
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for c.Peek(projectsKey).Data != "late" {
		if time.Now().After(deadline) {
			t.Fatal("detached fetch never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFetch_InvalidateSupersedesInFlight(t *testing.T) {
	c := newTestCache(newFakeClock())
	startedA := make(chan struct{})
	releaseA := make(chan struct{})
	resA := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), projectsKey, func(context.Context) (any, error) {
			close(startedA)
			<-releaseA
			return "A", nil
		})
		resA <- v
	}()
	<-startedA

	c.Invalidate(projectsKey)
	v, err := c.Fetch(context.Background(), projectsKey, func(context.Context) (any, error) {
		return "B", nil
	})
	if err != nil || v != "B" {
		t.Fatalf("second fetch = %v, %v; want B", v, err)
	}

	close(releaseA)
	if got := <-resA; got != "B" {
		t.Errorf("superseded caller got %v, want newer data B", got)
	}
	if s := c.Peek(projectsKey); s.Data != "B" {
		t.Errorf("cached = %v, want B (older reply must not overwrite)", s.Data)
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestCache(newFakeClock())
	events, cancel := c.Subscribe(Key{"issues"})
	defer cancel()

	c.Set(Key{"projects"}, 1)
	c.Set(Key{"issues", "project", "prj-1"}, 2)

	select {
	case ev := <-events:
		if ev.Key.String() != "issues/project/prj-1" || ev.Status != StatusFresh {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v", ev)
	default:
	}

	cancel()
	if _, ok := <-events; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestSweep(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache(clk)
	c.Set(Key{"projects"}, 1)
	c.Set(Key{"issues"}, 2)
	_, cancel := c.Subscribe(Key{"issues"})
	defer cancel()

	clk.Advance(10 * time.Minute)
	if n := c.Sweep(5 * time.Minute); n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if s := c.Peek(Key{"projects"}); s.HasData {
		t.Error("idle projects entry survived sweep")
	}
	if s := c.Peek(Key{"issues"}); !s.HasData {
		t.Error("observed issues entry was swept")
	}
}
