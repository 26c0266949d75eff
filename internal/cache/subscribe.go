package cache

// subscriber receives events for keys under prefix.
type subscriber struct {
	prefix Key
	ch     chan Event
}

// Subscribe returns a channel of change events for keys starting with
// prefix, and a function that ends the subscription. Events are dropped
// when the channel is full; subscribers should Peek for the latest state.
func (c *Cache) Subscribe(prefix Key) (<-chan Event, func()) {
	s := &subscriber{prefix: append(Key(nil), prefix...), ch: make(chan Event, 64)}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			close(s.ch)
		}
	}
	return s.ch, cancel
}

// notifyLocked publishes the state of e. c.mu must be held.
func (c *Cache) notifyLocked(e *entry) {
	if len(c.subs) == 0 {
		return
	}
	ev := Event{Key: append(Key(nil), e.key...), Status: c.statusLocked(e), Pending: e.pending > 0}
	for s := range c.subs {
		if !e.key.HasPrefix(s.prefix) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// observedLocked reports whether a subscriber watches key through a
// non-empty prefix. Catch-all subscriptions do not keep entries alive.
// c.mu must be held.
func (c *Cache) observedLocked(key Key) bool {
	for s := range c.subs {
		if len(s.prefix) > 0 && key.HasPrefix(s.prefix) {
			return true
		}
	}
	return false
}
