// Package resolver implements the iterative resolution state machine:
// it walks the root -> TLD -> authoritative delegation chain for a
// name, consulting the cache first, handling glue and glueless
// referrals, and bounding both the per-call frontier and the
// recursion depth used to resolve out-of-bailiwick nameservers.
package resolver

import (
	"time"

	"github.com/dnsscience/resolverd/internal/cache"
	"github.com/dnsscience/resolverd/internal/transport"
	"github.com/dnsscience/resolverd/internal/wire"
)

// Stage classifies which tier of the delegation chain a step's
// contacted server belongs to.
type Stage string

const (
	StageRoot  Stage = "ROOT"
	StageAuth  Stage = "TLD/AUTH"
	StageCache Stage = "CACHE"
)

// Mode distinguishes a step resolved from cache from one that actually
// contacted a server.
type Mode string

const (
	ModeIterative Mode = "iterative"
	ModeCached    Mode = "cached"
)

// ResponseType classifies the outcome of a single server contact.
type ResponseType string

const (
	ResponseAnswer     ResponseType = "ANSWER"
	ResponseReferral   ResponseType = "REFERRAL"
	ResponseNoResponse ResponseType = "NO_RESPONSE"
	ResponseNXDomain   ResponseType = "NXDOMAIN"
)

// CacheStatus records whether a step's data came from or missed cache.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
	CacheNA   CacheStatus = "N/A"
)

// Step is one record of the step trace: one server contact or cache
// resolution.
type Step struct {
	Domain      string
	Mode        Mode
	Server      string
	Stage       Stage
	Response    ResponseType
	RTTMillis   float64
	RTTTimeout  bool
	TotalMillis float64
	HasTotal    bool
	CacheStatus CacheStatus
}

// Result is the outcome of Resolve: either an IP with its step trace,
// or a failure with the trace of everything tried.
type Result struct {
	IP          string
	Found       bool
	TotalMillis float64
	Steps       []Step
	FromCache   bool
}

// rootServers is the hardcoded IANA root server IPv4 set, in the
// order every fresh resolve() seeds its frontier with.
var rootServers = [13]string{
	"198.41.0.4",
	"170.247.170.2",
	"192.33.4.12",
	"199.7.91.13",
	"192.203.230.10",
	"192.5.5.241",
	"192.112.36.4",
	"198.97.190.53",
	"192.36.148.17",
	"192.58.128.30",
	"193.0.14.129",
	"199.7.83.42",
	"202.12.27.33",
}

// sendQuery is the transport hook used for every server contact. It is
// a package variable rather than a direct call to transport.SendQuery
// so tests can point the resolver at fake UDP responders without
// touching the production transport.
var sendQuery = transport.SendQuery

func isRootServer(ip string) bool {
	for _, r := range rootServers {
		if r == ip {
			return true
		}
	}
	return false
}

// Config tunes the resolver's bounds. All fields have sane defaults
// applied by New.
type Config struct {
	// QueryTimeout is the fixed per-attempt transport deadline (§4.2).
	QueryTimeout time.Duration

	// CacheTTL overrides cache.DefaultTTL when non-zero.
	CacheTTL time.Duration

	// MaxGluelessDepth bounds recursive resolution of out-of-bailiwick
	// NS names (§4.4); recommended <= 8.
	MaxGluelessDepth int
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = transport.DefaultTimeout
	}
	if c.MaxGluelessDepth <= 0 {
		c.MaxGluelessDepth = 8
	}
	return c
}

// Resolver drives the iterative walk against a shared cache.
type Resolver struct {
	cache *cache.Cache
	cfg   Config
}

// New creates a Resolver backed by its own cache instance.
func New(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{
		cache: cache.New(cfg.CacheTTL),
		cfg:   cfg,
	}
}

// NewWithCache creates a Resolver backed by a cache the caller already
// owns (e.g. shared across concurrent client queries by the frontend).
func NewWithCache(c *cache.Cache, cfg Config) *Resolver {
	return &Resolver{cache: c, cfg: cfg.withDefaults()}
}

// Cache returns the resolver's backing cache, e.g. to read its
// hit/miss Stats or to seed entries.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// Resolve performs iterative resolution for name, consulting cache
// first and otherwise walking the delegation tree from the root.
func (r *Resolver) Resolve(name string) Result {
	return r.resolve(name, 0)
}

func (r *Resolver) resolve(name string, depth int) Result {
	start := time.Now()
	canon := cache.Canonical(name)

	if ip, ok := r.cache.GetA(canon); ok {
		return Result{
			IP:          ip,
			Found:       true,
			TotalMillis: 0,
			FromCache:   true,
			Steps: []Step{{
				Domain:      canon,
				Mode:        ModeCached,
				Server:      "cache",
				Stage:       StageCache,
				Response:    ResponseAnswer,
				RTTMillis:   0,
				TotalMillis: 0,
				HasTotal:    true,
				CacheStatus: CacheHit,
			}},
		}
	}

	frontier := append([]string{}, rootServers[:]...)
	visited := make(map[string]bool)
	var steps []Step

	for len(frontier) > 0 {
		srv := frontier[0]
		frontier = frontier[1:]

		if visited[srv] {
			continue
		}
		visited[srv] = true

		stage := StageAuth
		if isRootServer(srv) {
			stage = StageRoot
		}

		query, _, err := wire.BuildQuery(canon)
		if err != nil {
			continue
		}

		resp, rtt, ok := sendQuery(srv, query, r.cfg.QueryTimeout)
		if !ok {
			steps = append(steps, Step{
				Domain:      canon,
				Mode:        ModeIterative,
				Server:      srv,
				Stage:       stage,
				Response:    ResponseNoResponse,
				RTTTimeout:  true,
				CacheStatus: CacheMiss,
			})
			continue
		}

		answers, authorities, additionals := wire.ParseResponse(resp)

		if ip, found := firstA(answers); found {
			totalMs := elapsedMillis(start)
			steps = append(steps, Step{
				Domain:      canon,
				Mode:        ModeIterative,
				Server:      srv,
				Stage:       stage,
				Response:    ResponseAnswer,
				RTTMillis:   rtt.Seconds() * 1000,
				TotalMillis: totalMs,
				HasTotal:    true,
				CacheStatus: CacheMiss,
			})
			r.cache.PutA(canon, ip)
			return Result{IP: ip, Found: true, TotalMillis: totalMs, Steps: steps}
		}

		glueIPs := allA(additionals)
		if len(glueIPs) > 0 {
			for _, ip := range glueIPs {
				// Keyed by the referring server, not by the NS name it
				// describes - see cache.GetGlue.
				r.cache.PutGlue(srv, ip)
			}
			frontier = append(glueIPs, frontier...)
			steps = append(steps, Step{
				Domain:      canon,
				Mode:        ModeIterative,
				Server:      srv,
				Stage:       stage,
				Response:    ResponseReferral,
				RTTMillis:   rtt.Seconds() * 1000,
				CacheStatus: CacheMiss,
			})
			continue
		}

		nsNames := allNS(authorities)
		if len(nsNames) > 0 {
			r.cache.PutNS(canon, nsNames)
			steps = append(steps, Step{
				Domain:      canon,
				Mode:        ModeIterative,
				Server:      srv,
				Stage:       stage,
				Response:    ResponseReferral,
				RTTMillis:   rtt.Seconds() * 1000,
				CacheStatus: CacheMiss,
			})

			for _, ns := range nsNames {
				if ip, ok := r.cache.GetGlue(ns); ok {
					frontier = append([]string{ip}, frontier...)
					break
				}

				nextDepth := depth + 1
				if nextDepth > r.cfg.MaxGluelessDepth {
					continue
				}

				sub := r.resolve(ns, nextDepth)
				steps = append(steps, sub.Steps...)
				if sub.Found {
					frontier = append([]string{sub.IP}, frontier...)
					break
				}
			}
			continue
		}

		// Empty or useless response: no answer, no glue, no NS.
		steps = append(steps, Step{
			Domain:      canon,
			Mode:        ModeIterative,
			Server:      srv,
			Stage:       stage,
			Response:    ResponseReferral,
			RTTMillis:   rtt.Seconds() * 1000,
			CacheStatus: CacheMiss,
		})
	}

	return Result{Found: false, TotalMillis: elapsedMillis(start), Steps: steps}
}

func elapsedMillis(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}

func firstA(records []wire.Record) (string, bool) {
	for _, rec := range records {
		if rec.Kind == wire.KindA {
			return rec.A, true
		}
	}
	return "", false
}

func allA(records []wire.Record) []string {
	var ips []string
	for _, rec := range records {
		if rec.Kind == wire.KindA {
			ips = append(ips, rec.A)
		}
	}
	return ips
}

func allNS(records []wire.Record) []string {
	var names []string
	for _, rec := range records {
		if rec.Kind == wire.KindNS {
			names = append(names, rec.NS)
		}
	}
	return names
}
