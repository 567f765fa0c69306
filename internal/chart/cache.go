package chart

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Cache stores rendered charts on disk keyed by record id. Records are never modified after
// they are written, so entries never go stale.
type Cache struct {
	dir string
}

// NewCache creates a cache in dir. An empty dir disables caching.
func NewCache(dir string) *Cache {
	if dir == "" {
		return &Cache{}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.WithError(err).Warn("could not create chart cache directory, caching disabled")
		return &Cache{}
	}
	return &Cache{dir: dir}
}

// path hashes the id so any id string maps to its own file inside the cache directory.
func (c *Cache) path(recordID string) string {
	sum := sha256.Sum256([]byte(recordID))
	return filepath.Join(c.dir, "chart_"+hex.EncodeToString(sum[:])+".png")
}

func (c *Cache) Get(recordID string) ([]byte, bool) {
	if c.dir == "" || recordID == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path(recordID))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) Set(recordID string, data []byte) error {
	if c.dir == "" || recordID == "" {
		return nil
	}
	return os.WriteFile(c.path(recordID), data, 0644)
}
