package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func appendItem(item string) func(Key, any) any {
	return func(_ Key, cur any) any {
		list := cur.([]string)
		out := make([]string, 0, len(list)+1)
		out = append(out, list...)
		return append(out, item)
	}
}

func TestMutate_OptimisticThenReconcile(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, []string{"a"})

	var during Snapshot
	result, err := c.Mutate(context.Background(), Mutation{
		Keys:       []Key{projectsKey},
		Optimistic: appendItem("tmp-1"),
		Commit: func(ctx context.Context) (any, error) {
			during = c.Peek(projectsKey)
			return "prj-1", nil
		},
		Reconcile: func(_ Key, cur, res any) any {
			list := append([]string(nil), cur.([]string)...)
			for i, v := range list {
				if v == "tmp-1" {
					list[i] = res.(string)
				}
			}
			return list
		},
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if result != "prj-1" {
		t.Errorf("result = %v", result)
	}
	if diff := cmp.Diff([]string{"a", "tmp-1"}, during.Data); diff != "" || !during.Pending {
		t.Errorf("optimistic view (pending=%v) mismatch (-want +got):\n%s", during.Pending, diff)
	}
	s := c.Peek(projectsKey)
	if diff := cmp.Diff([]string{"a", "prj-1"}, s.Data); diff != "" {
		t.Errorf("reconciled mismatch (-want +got):\n%s", diff)
	}
	if s.Status != StatusFresh || s.Pending {
		t.Errorf("status = %s pending = %v, want fresh and settled", s.Status, s.Pending)
	}
}

func TestMutate_FailureRestoresEveryKey(t *testing.T) {
	clk := newFakeClock()
	c := newTestCache(clk)
	all := Key{"issues"}
	byProject := Key{"issues", "project", "prj-1"}
	c.Set(all, []string{"x", "y"})
	clk.Advance(time.Second)
	c.Set(byProject, []string{"x"})
	before := []Snapshot{c.Peek(all), c.Peek(byProject)}

	boom := errors.New("update rejected")
	_, err := c.Mutate(context.Background(), Mutation{
		Keys:       []Key{all, byProject},
		Optimistic: appendItem("z"),
		Commit: func(ctx context.Context) (any, error) {
			a, b := c.Peek(all).Data.([]string), c.Peek(byProject).Data.([]string)
			if a[len(a)-1] != "z" || b[len(b)-1] != "z" {
				t.Errorf("keys not projected together: %v %v", a, b)
			}
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	after := []Snapshot{c.Peek(all), c.Peek(byProject)}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("rollback mismatch (-before +after):\n%s", diff)
	}
}

func TestMutate_SkipsKeysWithoutData(t *testing.T) {
	c := newTestCache(newFakeClock())
	empty := Key{"issues"}
	_, err := c.Mutate(context.Background(), Mutation{
		Keys: []Key{empty},
		Optimistic: func(Key, any) any {
			t.Error("Optimistic called for a key without data")
			return nil
		},
		Commit: func(context.Context) (any, error) { return "ok", nil },
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if s := c.Peek(empty); s.HasData || s.Status != StatusEmpty {
		t.Errorf("snapshot = %+v, want empty", s)
	}
}

func TestMutate_SerializesInSubmissionOrder(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, []string{})

	inFirst := make(chan struct{})
	releaseFirst := make(chan struct{})
	var secondSaw []string
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Mutate(context.Background(), Mutation{
			Keys:       []Key{projectsKey},
			Optimistic: appendItem("1"),
			Commit: func(context.Context) (any, error) {
				close(inFirst)
				<-releaseFirst
				return nil, nil
			},
		})
	}()
	<-inFirst

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Mutate(context.Background(), Mutation{
			Keys: []Key{projectsKey},
			Optimistic: func(k Key, cur any) any {
				secondSaw = append([]string(nil), cur.([]string)...)
				return appendItem("2")(k, cur)
			},
			Commit: func(context.Context) (any, error) { return nil, nil },
		})
	}()
	waitForQueue(t, c, projectsKey, 2)

	if diff := cmp.Diff([]string{"1"}, c.Peek(projectsKey).Data); diff != "" {
		t.Errorf("second mutation applied early (-want +got):\n%s", diff)
	}
	close(releaseFirst)
	wg.Wait()

	if diff := cmp.Diff([]string{"1"}, secondSaw); diff != "" {
		t.Errorf("second mutation baseline mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2"}, c.Peek(projectsKey).Data); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
}

func TestMutate_DiscardsInFlightFetch(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, []string{"a"})
	c.Invalidate(projectsKey)

	started := make(chan struct{})
	release := make(chan struct{})
	fetched := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), projectsKey, func(context.Context) (any, error) {
			close(started)
			<-release
			return []string{"stale-server-view"}, nil
		})
		fetched <- v
	}()
	<-started

	_, err := c.Mutate(context.Background(), Mutation{
		Keys:       []Key{projectsKey},
		Optimistic: appendItem("b"),
		Commit:     func(context.Context) (any, error) { return nil, nil },
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	close(release)
	<-fetched

	if diff := cmp.Diff([]string{"a", "b"}, c.Peek(projectsKey).Data); diff != "" {
		t.Errorf("in-flight fetch clobbered mutation (-want +got):\n%s", diff)
	}
}

func TestMutate_FetchDuringPendingServesOptimistic(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, []string{"a"})
	c.Invalidate(projectsKey)

	_, err := c.Mutate(context.Background(), Mutation{
		Keys:       []Key{projectsKey},
		Optimistic: appendItem("b"),
		Commit: func(ctx context.Context) (any, error) {
			v, err := c.Fetch(ctx, projectsKey, func(context.Context) (any, error) {
				t.Error("fetch issued while a mutation was pending")
				return nil, nil
			})
			if err != nil {
				return nil, err
			}
			if diff := cmp.Diff([]string{"a", "b"}, v); diff != "" {
				t.Errorf("pending fetch mismatch (-want +got):\n%s", diff)
			}
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
}

func TestMutate_InvalidatesAfterSuccess(t *testing.T) {
	c := newTestCache(newFakeClock())
	issues := Key{"issues"}
	c.Set(projectsKey, []string{"p"})
	c.Set(issues, []string{"i"})

	_, err := c.Mutate(context.Background(), Mutation{
		Keys:       []Key{projectsKey},
		Commit:     func(context.Context) (any, error) { return nil, nil },
		Invalidate: []Key{issues},
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if s := c.Peek(issues); s.Status != StatusStale {
		t.Errorf("issues status = %s, want stale", s.Status)
	}
}

func TestMutate_CanceledWhileQueued(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set(projectsKey, []string{})
	inFirst := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Mutate(context.Background(), Mutation{
			Keys: []Key{projectsKey},
			Commit: func(context.Context) (any, error) {
				close(inFirst)
				<-releaseFirst
				return nil, nil
			},
		})
	}()
	<-inFirst

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Mutate(ctx, Mutation{
		Keys:   []Key{projectsKey},
		Commit: func(context.Context) (any, error) { return nil, nil },
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	close(releaseFirst)
	<-done

	// The abandoned waiter must not block later mutations.
	if _, err := c.Mutate(context.Background(), Mutation{
		Keys:   []Key{projectsKey},
		Commit: func(context.Context) (any, error) { return "ok", nil },
	}); err != nil {
		t.Fatalf("Mutate after abandoned waiter: %v", err)
	}
}

func waitForQueue(t *testing.T, c *Cache, key Key, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		got := len(c.entryLocked(key).queue)
		c.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue length = %d, want %d", got, n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMutate_FetchOfEmptyKeyWaitsForCommit(t *testing.T) {
	c := newTestCache(newFakeClock())
	inCommit := make(chan struct{})
	release := make(chan struct{})
	mutated := make(chan error, 1)
	go func() {
		_, err := c.Mutate(context.Background(), Mutation{
			Keys:       []Key{projectsKey},
			Optimistic: appendItem("tmp-1"),
			Commit: func(context.Context) (any, error) {
				close(inCommit)
				<-release
				return "prj-1", nil
			},
		})
		mutated <- err
	}()
	<-inCommit

	type result struct {
		v   any
		err error
	}
	fetched := make(chan result, 1)
	go func() {
		v, err := c.Fetch(context.Background(), projectsKey, func(context.Context) (any, error) {
			return []string{"prj-1"}, nil
		})
		fetched <- result{v, err}
	}()

	select {
	case r := <-fetched:
		t.Fatalf("fetch returned %v, %v before the mutation settled", r.v, r.err)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	if err := <-mutated; err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	r := <-fetched
	if r.err != nil {
		t.Fatalf("Fetch: %v", r.err)
	}
	if diff := cmp.Diff([]string{"prj-1"}, r.v); diff != "" {
		t.Errorf("fetched mismatch (-want +got):\n%s", diff)
	}
}

func TestMutate_FetchOfEmptyKeyHonorsContext(t *testing.T) {
	c := newTestCache(newFakeClock())
	inCommit := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = c.Mutate(context.Background(), Mutation{
			Keys: []Key{projectsKey},
			Commit: func(context.Context) (any, error) {
				close(inCommit)
				<-release
				return nil, nil
			},
		})
	}()
	<-inCommit

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, projectsKey, func(context.Context) (any, error) {
		t.Error("fetch issued while a mutation was pending")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
