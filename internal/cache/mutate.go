package cache

import (
	"context"
	"time"
)

// Mutation describes an optimistic write spanning one or more keys.
type Mutation struct {
	// Keys receive the optimistic projection and are rolled back together
	// on failure.
	Keys []Key
	// Optimistic returns the expected post-mutation data for a key. It is
	// only called for keys that hold data and must not modify current.
	Optimistic func(key Key, current any) any
	// Commit performs the write against the server.
	Commit func(ctx context.Context) (any, error)
	// Reconcile folds the server result into a key's data after a
	// successful commit. Nil keeps the optimistic data.
	Reconcile func(key Key, current, result any) any
	// Invalidate lists keys to mark stale after a successful commit.
	Invalidate []Key
}

// waiter is one queued mutation.
type waiter struct {
	keys    []*entry
	ready   chan struct{}
	granted bool
}

// saved is a rollback snapshot of one entry.
type saved struct {
	data        any
	hasData     bool
	updatedAt   time.Time
	err         error
	invalidated bool
}

// Mutate runs m. It waits for earlier mutations on any of m.Keys to settle,
// applies the optimistic projection, commits, and then either reconciles
// every key with the result or restores every key to its snapshot. The
// commit error is returned unchanged; failed mutations are not retried.
func (c *Cache) Mutate(ctx context.Context, m Mutation) (any, error) {
	w, err := c.acquire(ctx, m.Keys)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	snaps := make([]saved, len(w.keys))
	for i, e := range w.keys {
		snaps[i] = saved{e.data, e.hasData, e.updatedAt, e.err, e.invalidated}
		if e.fetching {
			c.stopFetchLocked(e)
		}
		e.floor = e.issued
		e.pending++
		if e.hasData && m.Optimistic != nil {
			e.data = m.Optimistic(e.key, e.data)
		}
		c.notifyLocked(e)
	}
	c.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	result, err := m.Commit(cctx)
	cancel()

	c.mu.Lock()
	now := c.opts.Now()
	for i, e := range w.keys {
		e.pending--
		if e.pending == 0 && e.settled != nil {
			close(e.settled)
			e.settled = nil
		}
		// Fetches issued while the mutation was outstanding may predate it.
		if e.fetching {
			c.stopFetchLocked(e)
		}
		e.floor = e.issued
		if err != nil {
			s := snaps[i]
			e.data, e.hasData, e.updatedAt, e.err, e.invalidated = s.data, s.hasData, s.updatedAt, s.err, s.invalidated
		} else if e.hasData {
			if m.Reconcile != nil {
				e.data = m.Reconcile(e.key, e.data, result)
			}
			e.updatedAt = now
			e.err = nil
			e.invalidated = false
		}
		c.notifyLocked(e)
	}
	c.removeLocked(w)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, k := range m.Invalidate {
		c.Invalidate(k)
	}
	return result, nil
}

// acquire queues a waiter on every key and blocks until it heads all of
// them. Queuing happens in one locked step, so waiters are ordered the same
// way on every key and the earliest waiter can always proceed.
func (c *Cache) acquire(ctx context.Context, keys []Key) (*waiter, error) {
	c.mu.Lock()
	w := &waiter{ready: make(chan struct{})}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		name := k.String()
		if seen[name] {
			continue
		}
		seen[name] = true
		e := c.entryLocked(k)
		e.lastAccess = c.opts.Now()
		e.queue = append(e.queue, w)
		w.keys = append(w.keys, e)
	}
	c.grantLocked(w)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return w, nil
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		// Whether or not w was granted meanwhile, dropping it hands the
		// keys on.
		c.removeLocked(w)
		return nil, ctx.Err()
	}
}

// grantLocked lets w proceed if it heads every one of its queues.
func (c *Cache) grantLocked(w *waiter) {
	if w.granted {
		return
	}
	for _, e := range w.keys {
		if e.queue[0] != w {
			return
		}
	}
	w.granted = true
	close(w.ready)
}

// removeLocked drops w from every queue it is in and grants any waiter that
// now heads all of its queues.
func (c *Cache) removeLocked(w *waiter) {
	for _, e := range w.keys {
		for i, q := range e.queue {
			if q == w {
				e.queue = append(e.queue[:i], e.queue[i+1:]...)
				break
			}
		}
	}
	for _, e := range w.keys {
		if len(e.queue) > 0 {
			c.grantLocked(e.queue[0])
		}
	}
}
