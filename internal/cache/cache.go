// Package cache is a keyed query cache with request deduplication,
// staleness tracking and optimistic mutations with rollback.
//
// Each key moves through Empty, Fetching, Fresh, Stale and Error. Concurrent
// fetches of one key share a single in-flight call. Mutations serialize per
// key in submission order; a mutation spanning several keys applies its
// optimistic projection, reconciliation or rollback to all of them in one
// locked step.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is the result of a fetch call overtaken by an invalidation
// or mutation while the key held no data. Fetch retries such calls.
var ErrSuperseded = errors.New("cache: fetch superseded")

// Key identifies a logical query, e.g. {"issues", "project", "prj-1a2b3"}.
type Key []string

// String joins the key segments with "/".
func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Status is the observable state of a key.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusFetching Status = "fetching"
	StatusFresh    Status = "fresh"
	StatusStale    Status = "stale"
	StatusError    Status = "error"
)

// Options configures a Cache.
type Options struct {
	StaleTime    time.Duration    // how long fetched data stays fresh
	FetchTimeout time.Duration    // bound on each fetch and mutation commit
	Now          func() time.Time // clock, for tests
}

// Snapshot is a point-in-time view of one key. Data is shared with the cache
// and must not be modified.
type Snapshot struct {
	Key       Key
	Data      any
	HasData   bool
	Status    Status
	UpdatedAt time.Time
	Err       error
	Pending   bool // an optimistic mutation is outstanding
}

// Event notifies subscribers that a key changed.
type Event struct {
	Key     Key    `json:"key"`
	Status  Status `json:"status"`
	Pending bool   `json:"pending"`
}

// FetchFunc loads the server state for a key.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key         Key
	data        any
	hasData     bool
	updatedAt   time.Time
	err         error
	invalidated bool
	lastAccess  time.Time

	fetching bool
	issued   uint64 // sequence of the current fetch
	floor    uint64 // fetch results at or below this sequence are discarded
	applied  uint64 // sequence of the last applied result
	cancel   context.CancelFunc

	queue   []*waiter     // mutation FIFO; queue[0] holds the key
	pending int
	settled chan struct{} // closed when pending drops to zero
}

// Cache is safe for concurrent use.
type Cache struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	group   singleflight.Group
	subs    map[*subscriber]struct{}
}

// New creates a Cache. Zero options take defaults of 30s staleness and a
// 10s fetch timeout.
func New(opts Options) *Cache {
	if opts.StaleTime == 0 {
		opts.StaleTime = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		opts:    opts,
		entries: make(map[string]*entry),
		subs:    make(map[*subscriber]struct{}),
	}
}

// entryLocked returns the entry for key, creating it. c.mu must be held.
func (c *Cache) entryLocked(key Key) *entry {
	name := key.String()
	e, ok := c.entries[name]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[name] = e
	}
	return e
}

// statusLocked derives the status of e. c.mu must be held.
func (c *Cache) statusLocked(e *entry) Status {
	switch {
	case e.fetching:
		return StatusFetching
	case e.err != nil:
		return StatusError
	case !e.hasData:
		return StatusEmpty
	case e.invalidated || c.opts.Now().Sub(e.updatedAt) >= c.opts.StaleTime:
		return StatusStale
	default:
		return StatusFresh
	}
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		Key:       append(Key(nil), e.key...),
		Data:      e.data,
		HasData:   e.hasData,
		Status:    c.statusLocked(e),
		UpdatedAt: e.updatedAt,
		Err:       e.err,
		Pending:   e.pending > 0,
	}
}

// stopFetchLocked detaches e from its in-flight fetch so that the result is
// discarded and the next Fetch starts a new call. c.mu must be held.
func (c *Cache) stopFetchLocked(e *entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.fetching = false
	e.floor = e.issued
}

// Fetch returns the data for key, calling fn when the cached data is
// missing, stale or failed. Fresh data and data under an outstanding
// mutation are served without calling fn. Concurrent callers share one
// call. On failure the previous data, if any, is returned with the error.
//
// A key with no data and an outstanding mutation is fetched once the
// mutation settles. A call overtaken while the key holds no data is retried.
//
// fn runs detached from ctx with its own FetchTimeout; ctx only bounds how
// long this caller waits.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		e := c.entryLocked(key)
		e.lastAccess = c.opts.Now()
		if e.hasData && (e.pending > 0 || c.statusLocked(e) == StatusFresh) {
			data := e.data
			c.mu.Unlock()
			return data, nil
		}
		if e.pending > 0 {
			settled := c.settledLocked(e)
			c.mu.Unlock()
			select {
			case <-settled:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		name := key.String()
		var ch <-chan singleflight.Result
		if !e.fetching {
			c.seq++
			seq := c.seq
			fctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
			e.fetching = true
			e.issued = seq
			e.cancel = cancel
			c.group.Forget(name)
			ch = c.group.DoChan(name, func() (any, error) {
				data, err := fn(fctx)
				cancel()
				return c.settle(e, seq, data, err)
			})
			c.notifyLocked(e)
		} else {
			// Joining the current call: DoChan ignores fn while the call is
			// registered, and it stays registered until settle has run.
			ch = c.group.DoChan(name, func() (any, error) { return nil, ErrSuperseded })
		}
		c.mu.Unlock()

		v, err := wait(ctx, ch)
		if errors.Is(err, ErrSuperseded) {
			continue
		}
		return v, err
	}
}

// settledLocked returns a channel closed when e has no outstanding
// mutation. c.mu must be held.
func (c *Cache) settledLocked(e *entry) <-chan struct{} {
	if e.settled == nil {
		e.settled = make(chan struct{})
	}
	return e.settled
}

func wait(ctx context.Context, ch <-chan singleflight.Result) (any, error) {
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle applies a fetch result unless it has been superseded.
func (c *Cache) settle(e *entry, seq uint64, data any, err error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq == e.issued && e.fetching {
		e.fetching = false
		e.cancel = nil
	}
	if seq <= e.floor || seq <= e.applied || e.pending > 0 {
		if e.hasData {
			return e.data, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrSuperseded
	}

	e.applied = seq
	if err != nil {
		e.err = err
		c.notifyLocked(e)
		return e.data, err
	}
	e.data = data
	e.hasData = true
	e.updatedAt = c.opts.Now()
	e.err = nil
	e.invalidated = false
	c.notifyLocked(e)
	return data, nil
}

// Peek returns the current state of key without fetching.
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{Key: append(Key(nil), key...), Status: StatusEmpty}
	}
	return c.snapshotLocked(e)
}

// Keys returns every key currently held, in no particular order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, append(Key(nil), e.key...))
	}
	return out
}

// Set stores data for key as freshly fetched server state. Any in-flight
// fetch for the key is discarded.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	c.stopFetchLocked(e)
	e.data = data
	e.hasData = true
	e.updatedAt = c.opts.Now()
	e.lastAccess = e.updatedAt
	e.err = nil
	e.invalidated = false
	c.notifyLocked(e)
}

// Invalidate marks key stale. An in-flight fetch is discarded so the next
// Fetch issues a new call.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok {
		c.invalidateLocked(e)
	}
}

// InvalidatePrefix marks every key starting with prefix stale. An empty
// prefix invalidates everything.
func (c *Cache) InvalidatePrefix(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			c.invalidateLocked(e)
		}
	}
}

func (c *Cache) invalidateLocked(e *entry) {
	e.invalidated = true
	if e.fetching && e.pending == 0 {
		c.stopFetchLocked(e)
	}
	c.notifyLocked(e)
}

// Sweep removes entries that have not been accessed within grace and have
// no fetch, mutation or subscriber attached. It returns how many were
// removed.
func (c *Cache) Sweep(grace time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.opts.Now().Add(-grace)
	removed := 0
	for name, e := range c.entries {
		if e.fetching || e.pending > 0 || len(e.queue) > 0 {
			continue
		}
		if e.lastAccess.After(cutoff) || c.observedLocked(e.key) {
			continue
		}
		delete(c.entries, name)
		removed++
	}
	return removed
}
