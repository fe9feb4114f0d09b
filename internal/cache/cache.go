// Package cache implements the resolver's three independent TTL-keyed
// stores: A records (fqdn -> IPv4), NS sets (zone -> ordered nameserver
// names) and glue (nameserver key -> IPv4). Expiry is lazy: a read that
// observes a stale entry evicts it on the spot. All three stores share
// one process-wide TTL constant, overriding whatever TTL the wire
// carried - a deliberate simplification inherited from the source.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/dchest/siphash"

	"github.com/dnsscience/resolverd/internal/random"
)

// DefaultTTL is the resolver-wide cache lifetime for every level.
const DefaultTTL = 300 * time.Second

type aEntry struct {
	ip         string
	insertedAt time.Time
}

type nsEntry struct {
	names      []string
	insertedAt time.Time
}

type glueEntry struct {
	ip         string
	insertedAt time.Time
}

// Stats is a snapshot of the cache's cumulative hit/miss counters,
// summed over all three stores.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache is the resolver's multi-level TTL cache. The zero value is not
// usable; construct with New.
type Cache struct {
	ttl    time.Duration
	k0, k1 uint64

	aMu sync.RWMutex
	a   map[uint64]aEntry

	nsMu sync.RWMutex
	ns   map[uint64]nsEntry

	glueMu sync.RWMutex
	glue   map[uint64]glueEntry

	mu     sync.Mutex // guards hits/misses
	hits   uint64
	misses uint64
}

// New creates an empty cache with the given TTL. A zero TTL selects
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	k0, k1 := random.Secret()
	return &Cache{
		ttl:  ttl,
		k0:   k0,
		k1:   k1,
		a:    make(map[uint64]aEntry),
		ns:   make(map[uint64]nsEntry),
		glue: make(map[uint64]glueEntry),
	}
}

// Canonical lowercases and strips the trailing dot from a domain name
// for use as a cache key, per §3's canonicalization rule.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

func (c *Cache) key(s string) uint64 {
	return siphash.Hash(c.k0, c.k1, []byte(Canonical(s)))
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// GetA looks up the cached A record for name.
func (c *Cache) GetA(name string) (string, bool) {
	k := c.key(name)

	c.aMu.RLock()
	e, ok := c.a[k]
	c.aMu.RUnlock()
	if !ok {
		c.recordMiss()
		return "", false
	}

	if time.Since(e.insertedAt) > c.ttl {
		c.aMu.Lock()
		delete(c.a, k)
		c.aMu.Unlock()
		c.recordMiss()
		return "", false
	}

	c.recordHit()
	return e.ip, true
}

// PutA caches an A record for name.
func (c *Cache) PutA(name, ip string) {
	k := c.key(name)
	c.aMu.Lock()
	c.a[k] = aEntry{ip: ip, insertedAt: time.Now()}
	c.aMu.Unlock()
}

// GetNS looks up the cached, ordered NS name set for zone.
func (c *Cache) GetNS(zone string) ([]string, bool) {
	k := c.key(zone)

	c.nsMu.RLock()
	e, ok := c.ns[k]
	c.nsMu.RUnlock()
	if !ok {
		c.recordMiss()
		return nil, false
	}

	if time.Since(e.insertedAt) > c.ttl {
		c.nsMu.Lock()
		delete(c.ns, k)
		c.nsMu.Unlock()
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return e.names, true
}

// PutNS caches the ordered NS name set for zone.
func (c *Cache) PutNS(zone string, names []string) {
	k := c.key(zone)
	cp := make([]string, len(names))
	copy(cp, names)
	c.nsMu.Lock()
	c.ns[k] = nsEntry{names: cp, insertedAt: time.Now()}
	c.nsMu.Unlock()
}

// GetGlue looks up a cached glue IP under the given key. Per §9, the
// resolver keys glue by the IP of the server that supplied it, not by
// the NS name it describes - an almost-certain bug preserved from the
// source. Callers look it up by NS name, so this will usually miss.
func (c *Cache) GetGlue(key string) (string, bool) {
	k := c.key(key)

	c.glueMu.RLock()
	e, ok := c.glue[k]
	c.glueMu.RUnlock()
	if !ok {
		c.recordMiss()
		return "", false
	}

	if time.Since(e.insertedAt) > c.ttl {
		c.glueMu.Lock()
		delete(c.glue, k)
		c.glueMu.Unlock()
		c.recordMiss()
		return "", false
	}

	c.recordHit()
	return e.ip, true
}

// PutGlue caches ip under key (the referring server's IP - see GetGlue).
func (c *Cache) PutGlue(key, ip string) {
	k := c.key(key)
	c.glueMu.Lock()
	c.glue[k] = glueEntry{ip: ip, insertedAt: time.Now()}
	c.glueMu.Unlock()
}

// GetStats returns a snapshot of the cache's cumulative hit/miss counts.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}
