// Package cache provides the process-local, checksum-validated caches
// named in the cache layer design: provider_response_cache,
// contact_to_party_cache, recent_lead_cache, and recent_identifier_cache.
//
// These caches are explicitly process-local (Non-goal: horizontally
// sharded caches). Horizontal scaling invalidates the 24-hour
// contact_to_party_cache tier and reduces per-IP rate-limit precision;
// no distributed replacement is in scope.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shardCount = 16

// entry is a single cached value with its recorded checksum and the time
// it becomes stale.
type entry struct {
	value    []byte
	checksum [32]byte
	expires  time.Time
	prev, next *entry
	key      string
}

// shard is one lock-protected partition of a Cache, holding an LRU list
// for eviction and a map for O(1) lookup.
type shard struct {
	mu       sync.Mutex
	items    map[string]*entry
	head, tail *entry // head = most recently used
	capacity int
}

func newShard(capacity int) *shard {
	return &shard{items: make(map[string]*entry), capacity: capacity}
}

// Cache is a single named, sharded, TTL-and-capacity-bounded, checksum
// validated cache. Reads never block on a shard they don't hit; writes
// take a short per-shard lock. Cache operations never panic or return an
// error: a miss is the universal degraded behavior.
type Cache struct {
	name   string
	ttl    time.Duration
	shards [shardCount]*shard
	logger *zap.Logger
}

// New creates a named cache with a fixed per-shard capacity
// (capacity/shardCount, minimum 1) and TTL.
func New(name string, capacity int, ttl time.Duration, logger *zap.Logger) *Cache {
	perShard := capacity / shardCount
	if perShard < 1 {
		perShard = 1
	}
	c := &Cache{name: name, ttl: ttl, logger: logger}
	for i := range c.shards {
		c.shards[i] = newShard(perShard)
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv32(key)
	return c.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// Put stores value under key with this cache's configured TTL, recording
// a SHA-256 checksum of the value for tamper/bit-rot detection on read.
func (c *Cache) Put(key string, value []byte) {
	sum := sha256.Sum256(value)
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok {
		e.value = value
		e.checksum = sum
		e.expires = time.Now().Add(c.ttl)
		s.moveToFrontLocked(e)
		return
	}

	e := &entry{key: key, value: value, checksum: sum, expires: time.Now().Add(c.ttl)}
	s.items[key] = e
	s.pushFrontLocked(e)

	if len(s.items) > s.capacity {
		s.evictLRULocked()
	}
}

// Get returns the cached value for key, or (nil, false) on miss, expiry,
// or checksum mismatch. A checksum mismatch evicts the entry.
func (c *Cache) Get(key string) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		s.removeLocked(e)
		return nil, false
	}
	if sha256.Sum256(e.value) != e.checksum {
		if c.logger != nil {
			c.logger.Warn("cache checksum mismatch, evicting", zap.String("cache", c.name), zap.String("key", key))
		}
		s.removeLocked(e)
		return nil, false
	}
	s.moveToFrontLocked(e)
	return e.value, true
}

// Delete removes key if present, a no-op otherwise.
func (c *Cache) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		s.removeLocked(e)
	}
}

// Len returns the number of live entries across all shards, for metrics
// and tests.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.items)
		s.mu.Unlock()
	}
	return total
}

// Sweep evicts all expired entries across all shards; intended to run on
// a background ticker so memory is reclaimed even for keys nobody reads
// again.
func (c *Cache) Sweep() {
	now := time.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.items {
			if now.After(e.expires) {
				s.removeLocked(e)
			}
		}
		s.mu.Unlock()
	}
}

func (s *shard) pushFrontLocked(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *shard) moveToFrontLocked(e *entry) {
	if s.head == e {
		return
	}
	s.unlinkLocked(e)
	s.pushFrontLocked(e)
}

func (s *shard) unlinkLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (s *shard) removeLocked(e *entry) {
	s.unlinkLocked(e)
	delete(s.items, e.key)
}

func (s *shard) evictLRULocked() {
	if s.tail == nil {
		return
	}
	s.removeLocked(s.tail)
}

// Checksum returns the SHA-256 hex digest of value. The tests use it to
// verify round-tripped payloads; provider_response_cache keys are not
// checksums but provider-prefixed tax ids built by the callers.
func Checksum(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// Manager owns the four named caches as distinct instances with their
// own capacity and TTL, matching the cache layer's independent-cache
// design.
type Manager struct {
	ProviderResponse   *Cache
	ContactToParty     *Cache
	RecentLead         *Cache
	RecentIdentifier   *Cache

	stopSweep chan struct{}
}

// NewManager constructs the four named caches with the capacities and
// TTLs named in the cache layer design, and starts a background sweep
// that reclaims expired entries every 30 seconds.
func NewManager(logger *zap.Logger) *Manager {
	m := &Manager{
		ProviderResponse: New("provider_response_cache", 100_000, time.Hour, logger),
		ContactToParty:   New("contact_to_party_cache", 50_000, 24*time.Hour, logger),
		RecentLead:       New("recent_lead_cache", 10_000, 5*time.Minute, logger),
		RecentIdentifier: New("recent_identifier_cache", 10_000, 5*time.Minute, logger),
		stopSweep:        make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.ProviderResponse.Sweep()
			m.ContactToParty.Sweep()
			m.RecentLead.Sweep()
			m.RecentIdentifier.Sweep()
		}
	}
}

// Close stops the background sweep goroutine.
func (m *Manager) Close() {
	close(m.stopSweep)
}
