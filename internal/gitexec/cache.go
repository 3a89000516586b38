package gitexec

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Default TTLs by operation class. Staleness tolerance differs: commit
// metadata is immutable once written, the current branch is not.
const (
	TTLCommitMeta = 24 * time.Hour
	TTLRemoteURL  = 30 * time.Minute
	TTLBranch     = 5 * time.Second
	TTLUnpushed   = 30 * time.Second
	TTLStatus     = 5 * time.Second
)

// keySep separates key segments. Repository paths are filesystem paths and
// cannot contain a newline, so it is collision-safe.
const keySep = "\n"

// ResultCache memoizes read-only git query results with per-entry TTLs.
//
// Concurrent callers requesting the same uncached key share a single
// underlying computation (single-flight); a cache miss never fans out into
// redundant subprocesses.
type ResultCache struct {
	store *gocache.Cache
	group singleflight.Group
}

// NewResultCache creates an empty cache. Expired entries are swept in the
// background every few minutes; lookups never return expired values.
func NewResultCache() *ResultCache {
	return &ResultCache{
		store: gocache.New(gocache.NoExpiration, 5*time.Minute),
	}
}

// Key builds a cache key from an operation name, a repository path, and
// optional extra discriminators (branch name, commit hash).
func Key(op, repoPath string, extra ...string) string {
	parts := append([]string{op, repoPath}, extra...)
	return strings.Join(parts, keySep)
}

// GetOrCompute returns the cached value for key, or runs produce exactly
// once across concurrent callers and caches its result for ttl.
//
// Errors are not cached: a failed producer leaves the key absent so the
// next caller retries.
func (c *ResultCache) GetOrCompute(key string, ttl time.Duration, produce func() (string, error)) (string, error) {
	if v, ok := c.store.Get(key); ok {
		return v.(string), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have populated
		// the entry between our miss and acquiring the flight.
		if v, ok := c.store.Get(key); ok {
			return v, nil
		}
		out, err := produce()
		if err != nil {
			return "", err
		}
		c.store.Set(key, out, ttl)
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate removes every entry whose key references repoPath. Called
// after any mutating operation (commit, push, pull) against that path.
func (c *ResultCache) Invalidate(repoPath string) {
	for key := range c.store.Items() {
		parts := strings.Split(key, keySep)
		if len(parts) >= 2 && parts[1] == repoPath {
			c.store.Delete(key)
		}
	}
}

// InvalidateAll drops every cached entry.
func (c *ResultCache) InvalidateAll() {
	c.store.Flush()
}
