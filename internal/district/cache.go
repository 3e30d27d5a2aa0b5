package district

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb/geojson"
)

// DefaultTTL is how long a downloaded layer stays fresh
const DefaultTTL = 7 * 24 * time.Hour

// Cache keeps the downloaded district layer on disk with a TTL
type Cache struct {
	Path string
	TTL  time.Duration

	now func() time.Time
}

type cacheEntry struct {
	Source   string                     `json:"source"`
	CachedAt time.Time                  `json:"cached_at"`
	Layer    *geojson.FeatureCollection `json:"layer"`
}

// NewCache creates a cache at path. A zero ttl uses DefaultTTL.
func NewCache(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{Path: path, TTL: ttl, now: time.Now}
}

// Get returns the cached layer for source, or nil if missing, expired,
// unreadable, or cached from a different source
func (c *Cache) Get(source string) *geojson.FeatureCollection {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if entry.Source != source || entry.Layer == nil {
		return nil
	}
	if c.now().Sub(entry.CachedAt) > c.TTL {
		return nil
	}
	return entry.Layer
}

// Set stores the layer for source
func (c *Cache) Set(source string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(cacheEntry{Source: source, CachedAt: c.now().UTC(), Layer: fc})
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		return fmt.Errorf("renaming cache: %w", err)
	}
	return nil
}
