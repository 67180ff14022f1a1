// Copyright 2026 The Classdeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenantcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/classdeck/classdeck/internal/observability/logger"
	"github.com/classdeck/classdeck/internal/tenant"
)

// Fetcher retrieves a tenant record by subdomain from its owner.
type Fetcher interface {
	GetTenant(ctx context.Context, subdomain string) (*tenant.Tenant, error)
}

// Cache is a read-through, read-mostly cache of tenant records keyed by
// subdomain. Entries are fresh for FreshTTL, then retained-but-stale until
// StaleTTL with revalidation happening in the background; beyond that they
// are fetched synchronously again. Concurrent fetches for one key are
// deduplicated, and an entry is only ever replaced wholesale, never patched
// in place.
type Cache struct {
	fetcher  Fetcher
	freshTTL time.Duration
	staleTTL time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
	gen     atomic.Uint64
}

type entry struct {
	tenant    *tenant.Tenant
	fetchedAt time.Time

	// generation is unique across all entries the cache ever stored, so
	// an in-flight revalidation can tell a surviving entry apart from a
	// same-key entry created after an eviction.
	generation uint64
}

// New creates a tenant record cache over the given fetcher.
func New(fetcher Fetcher, freshTTL, staleTTL time.Duration) *Cache {
	return &Cache{
		fetcher:  fetcher,
		freshTTL: freshTTL,
		staleTTL: staleTTL,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Get returns the tenant record for a subdomain. A fresh entry is returned
// directly; a stale-but-retained entry is returned immediately while a
// background revalidation runs; anything older forces a blocking fetch.
// Lookup failure is a non-fatal error the caller degrades on, never a crash.
func (c *Cache) Get(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	if subdomain == "" {
		// The root domain has no tenant. Valid, non-exceptional state.
		return nil, nil
	}

	c.mu.RLock()
	e := c.entries[subdomain]
	c.mu.RUnlock()

	if e != nil {
		age := c.now().Sub(e.fetchedAt)
		switch {
		case age < c.freshTTL:
			return e.tenant, nil
		case age < c.staleTTL:
			c.revalidate(subdomain, e.generation)
			return e.tenant, nil
		}
	}

	return c.fetch(ctx, subdomain)
}

// Refresh drops the cached entry so the next Get refetches. The
// singleflight key is forgotten too, so a Get after Refresh cannot join a
// fetch that started before it.
func (c *Cache) Refresh(subdomain string) {
	c.mu.Lock()
	delete(c.entries, subdomain)
	c.mu.Unlock()
	c.group.Forget(subdomain)
}

// Sweep evicts entries retained beyond the stale window. Wired to a
// periodic ticker by the server.
func (c *Cache) Sweep() {
	cutoff := c.now().Add(-c.staleTTL)
	c.mu.Lock()
	for key, e := range c.entries {
		if e.fetchedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// fetch loads the record through singleflight and stores it wholesale.
func (c *Cache) fetch(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	v, err, _ := c.group.Do(subdomain, func() (any, error) {
		t, err := c.fetcher.GetTenant(ctx, subdomain)
		if err != nil {
			return nil, err
		}
		c.store(subdomain, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tenant.Tenant), nil
}

// revalidate refetches a stale entry off the request path. The result is
// discarded, not merged, if the entry was replaced or evicted while the
// fetch was in flight.
func (c *Cache) revalidate(subdomain string, generation uint64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err, _ := c.group.Do(subdomain, func() (any, error) {
			t, err := c.fetcher.GetTenant(ctx, subdomain)
			if err != nil {
				return nil, err
			}

			c.mu.Lock()
			current, ok := c.entries[subdomain]
			if !ok || current.generation != generation {
				// Evicted or superseded while in flight. Discard.
				c.mu.Unlock()
				return t, nil
			}
			c.entries[subdomain] = &entry{tenant: t, fetchedAt: c.now(), generation: c.gen.Add(1)}
			c.mu.Unlock()
			return t, nil
		})
		if err != nil {
			// Stale copy stays served until the retention window runs out.
			slog.Warn("tenant record revalidation failed",
				logger.Subdomain(subdomain),
				logger.Error(err),
			)
		}
	}()
}

func (c *Cache) store(subdomain string, t *tenant.Tenant) {
	e := &entry{tenant: t, fetchedAt: c.now(), generation: c.gen.Add(1)}
	c.mu.Lock()
	c.entries[subdomain] = e
	c.mu.Unlock()
}
