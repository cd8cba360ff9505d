// Package refdata provides a file-backed cache of per-instrument reference
// data (spread, pip location, swap rates) used by the backtest cost model.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fxlab/internal/domain"
)

// SymbolCache holds symbol reference data keyed by upper-case symbol name.
// A missing file or a missing symbol is not an error: the backtest degrades
// to frictionless cost assumptions for unknown instruments.
type SymbolCache struct {
	path    string
	mu      sync.RWMutex
	symbols map[string]domain.SymbolInfo
}

// cacheFile is the on-disk JSON layout, matching the reference snapshots
// exported by the data pipeline.
type cacheFile struct {
	UpdatedAt string                       `json:"updated_at"`
	Symbols   map[string]domain.SymbolInfo `json:"symbols"`
}

// NewSymbolCache creates a SymbolCache backed by the JSON file at path.
func NewSymbolCache(path string) *SymbolCache {
	return &SymbolCache{
		path:    path,
		symbols: make(map[string]domain.SymbolInfo),
	}
}

// Load reads the cache file from disk. A nonexistent file leaves the cache
// empty and returns nil.
func (c *SymbolCache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading symbol cache %s: %w", c.path, err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing symbol cache %s: %w", c.path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, info := range file.Symbols {
		c.symbols[strings.ToUpper(name)] = info
	}
	return nil
}

// Save writes the cache to disk, creating parent directories as needed.
func (c *SymbolCache) Save() error {
	c.mu.RLock()
	file := cacheFile{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Symbols:   make(map[string]domain.SymbolInfo, len(c.symbols)),
	}
	for name, info := range c.symbols {
		file.Symbols[name] = info
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Get returns the reference data for a symbol. The lookup is
// case-insensitive. The second return value reports whether the symbol is
// known.
func (c *SymbolCache) Get(name string) (domain.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.symbols[strings.ToUpper(name)]
	return info, ok
}

// Put inserts or replaces the reference data for a symbol.
func (c *SymbolCache) Put(info domain.SymbolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols[strings.ToUpper(info.SymbolName)] = info
}

// Len returns the number of cached symbols.
func (c *SymbolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols)
}
