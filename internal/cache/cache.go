package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/prahari-health/prahari/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key from a namespace and the parts that identify the
// cached computation. Parts are hashed so queries and responses of any
// length and language produce filesystem-safe keys.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "prahari:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

// GetJSON retrieves a cached value and unmarshals it into out. A decode
// failure reads as a miss so stale encodings age out instead of erroring.
func GetJSON(c Cache, key string, out any) bool {
	if c == nil {
		return false
	}
	data, found := c.Get(key)
	if !found {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.Delete(key)
		return false
	}
	return true
}

// SetJSON marshals a value and stores it under the key
func SetJSON(c Cache, key string, value any, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(key, data, ttl)
}

// New builds the cache stack described by the configuration. Disabled
// caching yields nil, which every helper treats as a miss.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.KnowledgeTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.KnowledgeTTL, cfg.Dir, cfg.ExtractionTTL)
}
