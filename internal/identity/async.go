// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package identity

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/wardenmc/warden/internal/auth"
	"github.com/wardenmc/warden/pkg/errutil"
)

// ResolverConfig tunes the background lookup pool.
type ResolverConfig struct {
	// Workers is the number of lookup goroutines. Jobs for the same
	// name always land on the same worker, so results for one identity
	// apply in order.
	Workers int

	// QueueDepth is the per-worker job buffer. A full queue drops the
	// refresh; the next connect schedules it again.
	QueueDepth int

	// MaxRetries bounds the attempts per outward query.
	MaxRetries uint64

	// Backoff is the base of the Fibonacci backoff between attempts.
	Backoff time.Duration
}

func (c *ResolverConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 4
	}
	if c.Backoff <= 0 {
		c.Backoff = 250 * time.Millisecond
	}
}

type job struct {
	identifier string
	name       string
	address    string
}

// Resolver answers identity queries from cache and refreshes misses
// through a worker pool. It satisfies the directory the authentication
// state machine consults on connect.
type Resolver struct {
	lookup   Lookup
	cfg      ResolverConfig
	onResult func(identifier string, verified bool, geo *auth.GeoInfo)
	logger   *slog.Logger

	mu      sync.RWMutex
	names   map[string]string // lowercased name -> verified identifier ("" = unverified)
	alt     map[string]bool   // identifier -> alternate platform
	proxies map[string]bool   // address -> proxy origin
	pending map[string]struct{}
	closed  bool

	queues []chan job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResolver starts the lookup pool. onResult is invoked from a worker
// goroutine when a refresh lands; callers that need serialized application
// hand it to their event queue.
func NewResolver(lookup Lookup, cfg ResolverConfig, onResult func(identifier string, verified bool, geo *auth.GeoInfo), logger *slog.Logger) (*Resolver, error) {
	if lookup == nil {
		return nil, oops.Errorf("lookup is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		lookup:   lookup,
		cfg:      cfg,
		onResult: onResult,
		logger:   logger,
		names:    make(map[string]string),
		alt:      make(map[string]bool),
		proxies:  make(map[string]bool),
		pending:  make(map[string]struct{}),
		queues:   make([]chan job, cfg.Workers),
		cancel:   cancel,
	}
	for i := range r.queues {
		r.queues[i] = make(chan job, cfg.QueueDepth)
		r.wg.Add(1)
		go r.worker(ctx, r.queues[i])
	}
	return r, nil
}

// Close stops accepting refreshes and waits for queued and in-flight
// lookups to finish.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	for _, q := range r.queues {
		close(q)
	}
	r.wg.Wait()
	r.cancel()
}

// VerifiedIdentifier returns the cached identifier owning the display
// name. The second return is false on a cache miss.
func (r *Resolver) VerifiedIdentifier(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[strings.ToLower(name)]
	return id, ok
}

// AlternatePlatform reports whether the identifier connects through an
// alternate client platform.
func (r *Resolver) AlternatePlatform(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alt[identifier]
}

// ProxyAddress reports whether the address is a cached proxy origin.
func (r *Resolver) ProxyAddress(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proxies[address]
}

// Refresh schedules a background lookup. Duplicate refreshes for a name
// already in flight are dropped.
func (r *Resolver) Refresh(identifier, name, address string) {
	key := strings.ToLower(name)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, inflight := r.pending[key]; inflight {
		r.mu.Unlock()
		return
	}
	r.pending[key] = struct{}{}
	r.mu.Unlock()

	q := r.queues[r.queueFor(key)]
	select {
	case q <- job{identifier: identifier, name: name, address: address}:
	default:
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
		r.logger.Warn("identity lookup queue full, dropping refresh", "name", name)
	}
}

func (r *Resolver) queueFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % len(r.queues)
}

func (r *Resolver) worker(ctx context.Context, q <-chan job) {
	defer r.wg.Done()
	for j := range q {
		r.run(ctx, j)
	}
}

func (r *Resolver) run(ctx context.Context, j job) {
	key := strings.ToLower(j.name)
	defer func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewFibonacci(r.cfg.Backoff))

	var profile Profile
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		profile, err = r.lookup.Resolve(ctx, j.name, j.address)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		errutil.LogWarn(r.logger, "identity lookup failed",
			oops.Code("IDENTITY_LOOKUP_FAILED").
				With("name", j.name).
				Wrap(err))
		return
	}

	var proxy bool
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		proxy, err = r.lookup.CheckProxy(ctx, j.address)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		errutil.LogWarn(r.logger, "proxy check failed",
			oops.Code("IDENTITY_PROXY_CHECK_FAILED").
				With("address", j.address).
				Wrap(err))
		// Keep the profile result even when the proxy source is down.
	}

	r.mu.Lock()
	if profile.Verified {
		r.names[key] = profile.Identifier
	} else {
		r.names[key] = ""
	}
	r.alt[j.identifier] = profile.AlternatePlatform
	if err == nil {
		r.proxies[j.address] = proxy
	}
	r.mu.Unlock()

	verified := profile.Verified && profile.Identifier == j.identifier
	if r.onResult != nil {
		r.onResult(j.identifier, verified, profile.Geo)
	}
}
