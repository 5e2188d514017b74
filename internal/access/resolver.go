// Package access resolves the offices a user may report for from a static
// role and user policy, and caches the result per subject.
package access

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/reportal/model"
)

type cacheEntry struct {
	offices model.OfficeSet
	expires time.Time
}

// Resolver implements model.AccessResolver with an in-memory cache.
type Resolver struct {
	policy model.AccessPolicy
	ttl    time.Duration
	now    func() time.Time
	mu     sync.RWMutex
	cache  map[string]cacheEntry
}

// NewResolver creates a new Resolver with the given policy and cache TTL.
func NewResolver(policy model.AccessPolicy, ttl time.Duration) *Resolver {
	return &Resolver{
		policy: policy,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// cacheKey includes the roles so a token carrying new roles is not served
// stale access.
func cacheKey(rctx *model.RequestContext) string {
	roles := append([]string(nil), rctx.Roles...)
	sort.Strings(roles)
	return rctx.SubjectID + "|" + strings.Join(roles, ",")
}

// Resolve returns the office set for the given context. Results are cached
// for the configured TTL.
func (r *Resolver) Resolve(rctx *model.RequestContext) (model.OfficeSet, error) {
	key := cacheKey(rctx)

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expires) {
		r.mu.RUnlock()
		return entry.offices, nil
	}
	r.mu.RUnlock()

	offices, err := r.policy.ResolveOffices(rctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{offices: offices, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return offices, nil
}

// Invalidate clears cached access for the given subject, or for everyone
// when subjectID is empty.
func (r *Resolver) Invalidate(subjectID string) {
	prefix := subjectID + "|"
	r.mu.Lock()
	for key := range r.cache {
		if subjectID == "" || strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
	r.mu.Unlock()
}
