package rootio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/hist"
	"go.uber.org/zap"
)

// cacheVersion is bumped whenever the cached payload layout changes.
const cacheVersion = 1

// cachedDists is the payload stored for one Dists or Rows call.
type cachedDists struct {
	Obs *hist.Hist            `json:"obs,omitempty"`
	Exp map[string]*hist.Hist `json:"exp"`
}

func (c cachedDists) clone() (*hist.Hist, map[string]*hist.Hist) {
	var obs *hist.Hist
	if c.Obs != nil {
		obs = c.Obs.Clone("")
	}
	exp := make(map[string]*hist.Hist, len(c.Exp))
	for k, h := range c.Exp {
		exp[k] = h.Clone("")
	}
	return obs, exp
}

// CachedSource decorates a DistReader with an in-memory cache and an optional
// persistent cache store. Entries are keyed by file path, size, modification
// time, directory, row and filter, so a rewritten input file invalidates them.
// Callers always receive copies they are free to modify.
type CachedSource struct {
	next   DistReader
	store  contract.CacheStore
	logger *zap.Logger

	mu  sync.Mutex
	mem map[string]cachedDists

	hits, misses int
}

var _ DistReader = &CachedSource{} // Compile-time check

// NewCachedSource wraps next. store may be nil to keep the cache in memory only.
func NewCachedSource(next DistReader, store contract.CacheStore, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{next: next, store: store, logger: logger, mem: make(map[string]cachedDists)}
}

// CacheKey builds the cache key of a Dists call (empty row) or a Rows call.
// The key is the SHA-256 digest of the call arguments and of the input file
// size and modification time, so it has a fixed length of 64 hex characters.
func CacheKey(file, dir, row, filter string) (string, error) {
	info, err := os.Stat(file)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", file, err)
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d\x00%s\x00%s\x00%s",
		file, info.Size(), info.ModTime().UnixNano(), dir, row, filter))
	return hex.EncodeToString(sum[:]), nil
}

// Dists implements the DistReader interface.
func (c *CachedSource) Dists(ctx context.Context, file, dir, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	return c.fetch(file, dir, "", filter, func() (*hist.Hist, map[string]*hist.Hist, error) {
		return c.next.Dists(ctx, file, dir, filter)
	})
}

// Rows implements the DistReader interface.
func (c *CachedSource) Rows(ctx context.Context, file, dir, row, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	return c.fetch(file, dir, row, filter, func() (*hist.Hist, map[string]*hist.Hist, error) {
		return c.next.Rows(ctx, file, dir, row, filter)
	})
}

func (c *CachedSource) fetch(file, dir, row, filter string, read func() (*hist.Hist, map[string]*hist.Hist, error)) (*hist.Hist, map[string]*hist.Hist, error) {
	key, err := CacheKey(file, dir, row, filter)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	if entry, ok := c.mem[key]; ok {
		c.hits++
		c.mu.Unlock()
		obs, exp := entry.clone()
		return obs, exp, nil
	}
	c.mu.Unlock()

	if entry, ok := c.load(key); ok {
		c.remember(key, entry, true)
		obs, exp := entry.clone()
		return obs, exp, nil
	}

	obs, exp, err := read()
	if err != nil {
		return nil, nil, err
	}
	entry := cachedDists{Obs: obs, Exp: exp}
	c.remember(key, entry, false)
	c.save(key, entry)
	obs, exp = entry.clone()
	return obs, exp, nil
}

func (c *CachedSource) remember(key string, entry cachedDists, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = entry
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// load reads key from the persistent store. Failures count as misses.
func (c *CachedSource) load(key string) (cachedDists, bool) {
	if c.store == nil {
		return cachedDists{}, false
	}
	value, version, _, err := c.store.Get(key)
	if err != nil || version != cacheVersion {
		return cachedDists{}, false
	}
	var entry cachedDists
	if err := json.Unmarshal(value, &entry); err != nil {
		c.logger.Debug("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return cachedDists{}, false
	}
	return entry, true
}

// save writes key to the persistent store. Failures are logged and ignored.
func (c *CachedSource) save(key string, entry cachedDists) {
	if c.store == nil {
		return
	}
	value, err := json.Marshal(entry)
	if err != nil {
		c.logger.Debug("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(key, value, cacheVersion, time.Now().Unix()); err != nil {
		c.logger.Debug("failed to store cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Stats returns the number of cache hits and misses so far.
func (c *CachedSource) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
