// Package gcache implements the two-tier cache used to hold per-process
// and per-binary symbolization state across profiling rounds.
//
// Grounded on common/src/ebpf/symtab/gcache.rs: a bounded LRU tier for the
// common case, plus a round-tracked tier for entries that must survive
// eviction pressure until they have been unused for a configurable number
// of rounds (Get/GetOrCreate mark them used), at which point Cleanup
// removes them.
package gcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Round is a monotonically increasing counter; one profiling collection
// round, during which each resolved entry is marked fresh via Get or
// GetOrCreate.
type Round uint64

type roundEntry[V any] struct {
	value V
	round Round
}

// GCache is a generic two-tier cache keyed by K holding values V.
// Entries inserted via GetOrCreate are tracked in a round-indexed map so
// they survive until Cleanup(keepRounds) evicts anything stale; a bounded
// LRU of size `lruCapacity` sits in front of the round map, and a hit in
// either tier marks the entry fresh for the current round.
type GCache[K comparable, V any] struct {
	lru    *lru.Cache[K, V]
	rounds map[K]*roundEntry[V]
	round  Round
}

// New creates a GCache whose fast-path LRU holds up to lruCapacity
// entries; the round-tracked tier is unbounded until Cleanup runs.
func New[K comparable, V any](lruCapacity int) (*GCache[K, V], error) {
	l, err := lru.New[K, V](lruCapacity)
	if err != nil {
		return nil, err
	}
	return &GCache[K, V]{
		lru:    l,
		rounds: make(map[K]*roundEntry[V]),
	}, nil
}

// NewRound advances the round counter; call this once per collection
// round before any GetOrCreate calls for that round.
func (c *GCache[K, V]) NewRound() {
	c.round++
}

// Get returns the cached value for key, checking the LRU first and
// falling back to the round-tracked tier; either hit refreshes the
// entry's round.
func (c *GCache[K, V]) Get(key K) (V, bool) {
	if v, ok := c.lru.Get(key); ok {
		if e, ok := c.rounds[key]; ok {
			e.round = c.round
		}
		return v, true
	}
	if e, ok := c.rounds[key]; ok {
		e.round = c.round
		return e.value, true
	}
	var zero V
	return zero, false
}

// GetOrCreate returns the cached value for key if present, marking it
// fresh for the current round; otherwise it calls create, stores the
// result in both tiers, and returns it.
func (c *GCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	c.rounds[key] = &roundEntry[V]{value: v, round: c.round}
	return v, nil
}

// Put inserts or overwrites key unconditionally, e.g. when a new ELF
// module supersedes the previous entry for a file identity.
func (c *GCache[K, V]) Put(key K, value V) {
	c.lru.Add(key, value)
	c.rounds[key] = &roundEntry[V]{value: value, round: c.round}
}

// Remove evicts key from both tiers.
func (c *GCache[K, V]) Remove(key K) {
	c.lru.Remove(key)
	delete(c.rounds, key)
}

// Cleanup drops every round-tracked entry whose last-seen round is more
// than keepRounds behind the current round, removing it from the LRU
// tier as well.
func (c *GCache[K, V]) Cleanup(keepRounds Round) (evicted int) {
	if c.round < keepRounds {
		return 0
	}
	threshold := c.round - keepRounds
	for k, e := range c.rounds {
		if e.round < threshold {
			delete(c.rounds, k)
			c.lru.Remove(k)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of entries tracked in the round tier, which is
// always a superset of what is currently resident in the LRU.
func (c *GCache[K, V]) Len() int {
	return len(c.rounds)
}

// Round reports the current round counter, mostly useful for tests and
// debug snapshots.
func (c *GCache[K, V]) Round() Round {
	return c.round
}
