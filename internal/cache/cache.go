// Package cache is an in-process TTL response cache layered over the read
// endpoints. The engine recomputes everything per request; this only absorbs
// dashboard polling.
package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dotrep-labs/reputation-engine/internal/monitoring"
)

// Item is a cached response body with expiration.
type Item struct {
	Data      []byte
	ExpiresAt time.Time
}

// IsExpired checks if the item has expired.
func (i *Item) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// Cache provides thread-safe response caching with TTL.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	ttl   time.Duration
}

// New creates a cache with the given TTL and starts the cleanup loop.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*Item),
		ttl:   ttl,
	}
	go c.cleanup()
	return c
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, item := range c.items {
			if item.IsExpired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

func (c *Cache) key(input string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(input)))
}

// Get retrieves a cached body.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.IsExpired() {
		return nil, false
	}
	return item.Data, true
}

// Set stores a body under the key.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &Item{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Clear removes all cached items.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
}

// Stats returns cache statistics for the operational endpoint.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.items)
	expired := 0
	for _, item := range c.items {
		if item.IsExpired() {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   total,
		"expired_items": expired,
		"active_items":  total - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// cacheablePrefixes are the read endpoints whose responses may be served from
// cache. Ingestion and operational endpoints are never cached.
var cacheablePrefixes = []string{
	"/anomalies",
	"/score/",
	"/explain/",
	"/contributions",
	"/reputation/multichain/",
}

func cacheable(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet {
		return false
	}
	path := c.Request.URL.Path
	for _, prefix := range cacheablePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware serves cached bodies for the read endpoints and captures
// successful responses on miss. The key includes the full query string so
// different parameter combinations cache independently.
func (c *Cache) Middleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !cacheable(ctx) {
			ctx.Next()
			return
		}

		cacheKey := c.key(ctx.Request.Method + " " + ctx.Request.URL.RequestURI())

		if data, found := c.Get(cacheKey); found {
			metrics.IncrementCacheHit()
			ctx.Data(http.StatusOK, "application/json", data)
			ctx.Abort()
			return
		}
		metrics.IncrementCacheMiss()

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK {
			c.Set(cacheKey, wrapper.body.Bytes())
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture the response body.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
