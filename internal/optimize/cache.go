package optimize

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fxlab/internal/strategy"
)

// Cache memoizes evaluation scores keyed by the MD5 of the canonical JSON
// encoding of (metric, params). Scores live in memory for the run and, when
// a directory is configured, in one JSON file per key so repeated sweeps can
// reuse earlier work.
type Cache struct {
	dir string
	mu  sync.Mutex
	mem map[string]float64
}

type cacheEntry struct {
	Scope   string          `json:"scope"`
	Metric  string          `json:"metric"`
	Params  strategy.Params `json:"params"`
	Score   float64         `json:"score"`
	SavedAt string          `json:"saved_at"`
}

// NewCache creates a Cache persisting to dir. An empty dir keeps the cache
// in memory only.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, mem: make(map[string]float64)}
}

// Key derives the cache key for a scope, metric, and parameter set. Map keys
// are sorted by the JSON encoder, so equal parameter sets always hash alike.
func (c *Cache) Key(scope, metric string, params strategy.Params) string {
	payload := struct {
		Scope  string          `json:"scope"`
		Metric string          `json:"metric"`
		Params strategy.Params `json:"params"`
	}{Scope: scope, Metric: metric, Params: params}
	data, _ := json.Marshal(payload)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached score for a key, consulting memory first and then
// the on-disk entry.
func (c *Cache) Get(key string) (float64, bool) {
	c.mu.Lock()
	if s, ok := c.mem[key]; ok {
		c.mu.Unlock()
		return s, true
	}
	c.mu.Unlock()

	if c.dir == "" {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, key+".json"))
	if err != nil {
		return 0, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return 0, false
	}

	c.mu.Lock()
	c.mem[key] = entry.Score
	c.mu.Unlock()
	return entry.Score, true
}

// Put records a score in memory and, when configured, on disk. Disk write
// failures are swallowed: the cache is an accelerator, not a store of
// record.
func (c *Cache) Put(key, scope, metric string, params strategy.Params, score float64) {
	c.mu.Lock()
	c.mem[key] = score
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	entry := cacheEntry{
		Scope:   scope,
		Metric:  metric,
		Params:  params,
		Score:   score,
		SavedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(c.dir, key+".json"), data, 0o644)
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}
