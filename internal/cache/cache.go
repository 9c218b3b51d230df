// Package cache holds small TTL caches for data read often and changed rarely.
package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const megabyte = 1024 * 1024

// TTLCache stores JSON encoded values under string keys. Each cache is an
// explicit object handed to its consumers; there is no package level cache.
type TTLCache struct {
	name    string
	cache   *freecache.Cache
	ttl     time.Duration
	metrics *metrics.Manager
}

func NewTTLCache(name string, sizeMB int, ttl time.Duration, metricsManager *metrics.Manager) *TTLCache {
	return &TTLCache{
		name:    name,
		cache:   freecache.NewCache(sizeMB * megabyte),
		ttl:     ttl,
		metrics: metricsManager,
	}
}

// Get decodes the cached value for key into dst and reports whether it was found.
func (c *TTLCache) Get(key string, dst any) bool {
	valueBytes, err := c.cache.Get([]byte(key))
	if err != nil {
		c.metrics.CounterCacheLookups.WithLabelValues(c.name, "miss").Inc()
		return false
	}

	if err := json.Unmarshal(valueBytes, dst); err != nil {
		log.Errorf("cache %s: unmarshal value for [%s]: %s", c.name, key, err)
		c.cache.Del([]byte(key))
		c.metrics.CounterCacheLookups.WithLabelValues(c.name, "miss").Inc()
		return false
	}

	c.metrics.CounterCacheLookups.WithLabelValues(c.name, "hit").Inc()
	return true
}

func (c *TTLCache) Set(key string, value any) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	expireSeconds := int(math.Ceil(c.ttl.Seconds()))
	if err := c.cache.Set([]byte(key), valueBytes, expireSeconds); err != nil {
		return fmt.Errorf("set cache value: %w", err)
	}

	return nil
}

func (c *TTLCache) Invalidate(key string) {
	c.cache.Del([]byte(key))
}

func (c *TTLCache) Clear() {
	c.cache.Clear()
}
