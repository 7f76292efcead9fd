// Package cache provides the generic, multi-policy in-memory caches used
// throughout PulseArc: WBS element lookups, evidence-extraction keyword
// sets, and OAuth token caching.
package cache

import (
	"container/list"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Policy selects the eviction strategy a Cache uses once it reaches
// MaxEntries.
type Policy int

const (
	PolicyLRU Policy = iota
	PolicyLFU
	PolicyFIFO
	PolicyTTL
	PolicyNone
)

// Config configures a Cache.
type Config struct {
	Policy     Policy
	MaxEntries int
	DefaultTTL time.Duration
}

// entry is the value stored for PolicyLFU/PolicyFIFO/PolicyTTL/PolicyNone;
// PolicyLRU delegates entirely to hashicorp/golang-lru.
type entry[V any] struct {
	value      V
	expiresAt  time.Time
	frequency  int
	insertedAt time.Time
	fifoElem   *list.Element
}

// Cache is a generic, policy-selectable cache. PolicyLRU is backed by
// hashicorp/golang-lru/v2 directly; the other policies are implemented
// locally because that library only expresses LRU eviction.
type Cache[K comparable, V any] struct {
	mu     sync.Mutex
	cfg    Config
	lruc   *lru.Cache[K, entry[V]]
	plain  map[K]*entry[V]
	fifo   *list.List // holds K values in insertion order, for PolicyFIFO
	fifoIx map[K]*list.Element
}

// New creates a Cache using the given Config.
func New[K comparable, V any](cfg Config) *Cache[K, V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	c := &Cache[K, V]{cfg: cfg}

	switch cfg.Policy {
	case PolicyLRU:
		l, _ := lru.New[K, entry[V]](cfg.MaxEntries)
		c.lruc = l
	case PolicyFIFO:
		c.plain = make(map[K]*entry[V])
		c.fifo = list.New()
		c.fifoIx = make(map[K]*list.Element)
	default:
		c.plain = make(map[K]*entry[V])
	}
	return c
}

// Get returns the value for key if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.cfg.Policy == PolicyLRU {
		e, ok := c.lruc.Get(key)
		if !ok || c.expired(e.expiresAt) {
			return zero, false
		}
		return e.value, true
	}

	e, ok := c.plain[key]
	if !ok || c.expired(e.expiresAt) {
		return zero, false
	}
	if c.cfg.Policy == PolicyLFU {
		e.frequency++
	}
	return e.value, true
}

// Set inserts or updates key with value, using ttl (or the configured
// DefaultTTL if ttl is zero). Eviction runs if MaxEntries is exceeded.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value, expiresAt: expiresAt, insertedAt: time.Now()}

	switch c.cfg.Policy {
	case PolicyLRU:
		c.lruc.Add(key, e)
		return
	case PolicyFIFO:
		if existing, ok := c.fifoIx[key]; ok {
			c.fifo.Remove(existing)
		}
		elem := c.fifo.PushBack(key)
		c.fifoIx[key] = elem
		c.plain[key] = &e
		c.evictFIFO()
		return
	default:
		c.plain[key] = &e
		c.evictUnordered()
	}
}

func (c *Cache[K, V]) evictFIFO() {
	for len(c.plain) > c.cfg.MaxEntries {
		oldest := c.fifo.Front()
		if oldest == nil {
			return
		}
		key := oldest.Value.(K)
		c.fifo.Remove(oldest)
		delete(c.fifoIx, key)
		delete(c.plain, key)
	}
}

// evictUnordered handles PolicyLFU, PolicyTTL and PolicyNone: PolicyNone
// never evicts proactively (callers are expected to bound key cardinality
// themselves); PolicyTTL evicts the entry closest to expiry; PolicyLFU
// evicts the least-frequently-used entry.
func (c *Cache[K, V]) evictUnordered() {
	if c.cfg.Policy == PolicyNone {
		return
	}
	for len(c.plain) > c.cfg.MaxEntries {
		var victim K
		found := false
		var bestExpiry time.Time
		bestFreq := int(^uint(0) >> 1)

		for k, e := range c.plain {
			switch c.cfg.Policy {
			case PolicyTTL:
				if !found || (e.expiresAt.Before(bestExpiry)) {
					victim, bestExpiry, found = k, e.expiresAt, true
				}
			case PolicyLFU:
				if !found || e.frequency < bestFreq {
					victim, bestFreq, found = k, e.frequency, true
				}
			}
		}
		if !found {
			return
		}
		delete(c.plain, victim)
	}
}

func (c *Cache[K, V]) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && time.Now().After(expiresAt)
}

// Peek returns the value for key if present and unexpired, without
// promoting it under PolicyLRU or bumping its frequency under PolicyLFU.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.cfg.Policy == PolicyLRU {
		e, ok := c.lruc.Peek(key)
		if !ok || c.expired(e.expiresAt) {
			return zero, false
		}
		return e.value, true
	}

	e, ok := c.plain[key]
	if !ok || c.expired(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Iter calls fn for every unexpired entry, stopping early if fn returns
// false. Under PolicyLRU, entries are visited most- to least-recently-used
// and Iter itself does not change that order; under PolicyFIFO, entries are
// visited newest- to oldest-inserted; other policies visit in unspecified
// order.
func (c *Cache[K, V]) Iter(fn func(key K, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Policy == PolicyLRU {
		keys := c.lruc.Keys() // oldest to newest (LRU to MRU)
		for i := len(keys) - 1; i >= 0; i-- {
			e, ok := c.lruc.Peek(keys[i])
			if !ok || c.expired(e.expiresAt) {
				continue
			}
			if !fn(keys[i], e.value) {
				return
			}
		}
		return
	}

	if c.cfg.Policy == PolicyFIFO {
		for elem := c.fifo.Back(); elem != nil; elem = elem.Prev() {
			key := elem.Value.(K)
			e := c.plain[key]
			if e == nil || c.expired(e.expiresAt) {
				continue
			}
			if !fn(key, e.value) {
				return
			}
		}
		return
	}

	for key, e := range c.plain {
		if c.expired(e.expiresAt) {
			continue
		}
		if !fn(key, e.value) {
			return
		}
	}
}

// GetOrInsert returns the cached value for key if present, otherwise calls f
// exactly once to produce a value, stores it, and returns it. Concurrent
// callers racing on a missing key block on the same lock rather than each
// invoking f independently.
func (c *Cache[K, V]) GetOrInsert(key K, ttl time.Duration, f func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.cfg.Policy == PolicyLRU {
		if e, ok := c.lruc.Peek(key); ok && !c.expired(e.expiresAt) {
			return e.value, nil
		}
	} else if e, ok := c.plain[key]; ok && !c.expired(e.expiresAt) {
		if c.cfg.Policy == PolicyLFU {
			e.frequency++
		}
		return e.value, nil
	}

	value, err := f()
	if err != nil {
		return zero, err
	}

	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	e := entry[V]{value: value, expiresAt: expiresAt, insertedAt: time.Now()}

	switch c.cfg.Policy {
	case PolicyLRU:
		c.lruc.Add(key, e)
	case PolicyFIFO:
		if existing, ok := c.fifoIx[key]; ok {
			c.fifo.Remove(existing)
		}
		elem := c.fifo.PushBack(key)
		c.fifoIx[key] = elem
		c.plain[key] = &e
		c.evictFIFO()
	default:
		c.plain[key] = &e
		c.evictUnordered()
	}
	return value, nil
}

// Delete removes key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Policy == PolicyLRU {
		c.lruc.Remove(key)
		return
	}
	if c.cfg.Policy == PolicyFIFO {
		if elem, ok := c.fifoIx[key]; ok {
			c.fifo.Remove(elem)
			delete(c.fifoIx, key)
		}
	}
	delete(c.plain, key)
}

// Len returns the number of entries currently stored (including possibly
// expired-but-not-yet-evicted entries for non-LRU policies).
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Policy == PolicyLRU {
		return c.lruc.Len()
	}
	return len(c.plain)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Policy {
	case PolicyLRU:
		c.lruc.Purge()
	case PolicyFIFO:
		c.plain = make(map[K]*entry[V])
		c.fifo.Init()
		c.fifoIx = make(map[K]*list.Element)
	default:
		c.plain = make(map[K]*entry[V])
	}
}
