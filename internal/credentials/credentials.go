// Package credentials implements component C: a memoised, in-flight-
// coalescing cache of caller identity, resolved over whatever transport
// carries the request (spec §4.3). The original D-Bus peer-credentials
// lookup has no equivalent over plain HTTP, so the default Resolver treats
// every caller as the process owner; deployments with a real privilege
// boundary (e.g. a unix-socket transport) can supply their own.
package credentials

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// Credentials mirrors spec §3's tuple. Label is "unconfined" when the
// confinement subsystem is disabled, per spec §4.3/§GLOSSARY.
type Credentials struct {
	Valid bool
	UID   uint32
	Label string
}

// Resolver performs the actual identity lookup for a peer. It is invoked at
// most once per peer while no cached or pending entry exists for it.
type Resolver func(ctx context.Context, peer string) (Credentials, error)

// DefaultResolver treats every caller as the process owner with an
// "unconfined" label — the stand-in policy for transports (like this
// daemon's HTTP front door) that carry no peer credentials of their own.
// Real confinement-aware transports should supply a Resolver that decodes
// the platform's security label, per original_source's LinuxSecurityLabel
// handling.
func DefaultResolver(uid uint32) Resolver {
	return func(ctx context.Context, peer string) (Credentials, error) {
		return Credentials{Valid: true, UID: uid, Label: "unconfined"}, nil
	}
}

type waiter chan Credentials

// Cache resolves and memoises Credentials by peer, coalescing concurrent
// lookups for the same peer into a single Resolver call (spec §4.3). Bounded
// by an LRU of size `size`, resolving spec §9's "credentials cache has no
// bound (FIXME)" note.
type Cache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, Credentials]
	pending  map[string][]waiter
	resolve  Resolver
}

// New builds a Cache bounded to size peers (spec §9 recommends 1024).
func New(resolve Resolver, size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	l, err := lru.New[string, Credentials](size)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	return &Cache{lru: l, pending: make(map[string][]waiter), resolve: resolve}, nil
}

// Lookup implements spec §4.3's three-branch operation: cached hit, join an
// in-flight lookup, or issue a new one. Waiters for a given peer are
// completed in registration order (spec §5 ordering guarantee).
func (c *Cache) Lookup(ctx context.Context, peer string) (Credentials, error) {
	c.mu.Lock()
	if creds, ok := c.lru.Get(peer); ok {
		c.mu.Unlock()
		return creds, nil
	}

	if waiters, inFlight := c.pending[peer]; inFlight {
		ch := make(waiter, 1)
		c.pending[peer] = append(waiters, ch)
		c.mu.Unlock()
		select {
		case creds := <-ch:
			return creds, nil
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}
	}

	c.pending[peer] = nil
	c.mu.Unlock()

	creds, err := c.resolve(ctx, peer)
	if err != nil {
		// On resolver error spec §4.3 says: "build {valid=false}, treat
		// identically" — still cache and release waiters, just with an
		// invalid result, rather than leaving them to time out.
		creds = Credentials{Valid: false}
		logger.Warnf("[CredentialsCache] resolve failed for peer %s: %v", peer, err)
	}

	c.deliver(peer, creds)
	return creds, nil
}

func (c *Cache) deliver(peer string, creds Credentials) {
	c.mu.Lock()
	waiters := c.pending[peer]
	delete(c.pending, peer)
	c.lru.Add(peer, creds)
	c.mu.Unlock()

	for _, w := range waiters {
		w <- creds
	}
}

// Invalidate drops any cached credentials for peer, forcing the next lookup
// to re-resolve.
func (c *Cache) Invalidate(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(peer)
}

// Len reports the number of memoised peers, mainly for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
