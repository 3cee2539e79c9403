package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotrep-labs/reputation-engine/internal/monitoring"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	key := c.key("GET /score/alice")
	_, found := c.Get(key)
	assert.False(t, found)

	c.Set(key, []byte(`{"actor":"alice"}`))
	data, found := c.Get(key)
	require.True(t, found)
	assert.JSONEq(t, `{"actor":"alice"}`, string(data))
}

func TestCacheExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)

	key := c.key("GET /anomalies")
	c.Set(key, []byte("[]"))

	time.Sleep(25 * time.Millisecond)
	_, found := c.Get(key)
	assert.False(t, found)
}

func TestCacheClearAndStats(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	stats := c.Stats()
	assert.Equal(t, 2, stats["total_items"])
	assert.Equal(t, 2, stats["active_items"])

	c.Clear()
	assert.Equal(t, 0, c.Stats()["total_items"])
}

func newTestRouter(c *Cache, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(c.Middleware(monitoring.NewMetrics()))
	router.GET("/score/:actor", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"actor": ctx.Param("actor"), "hits": *hits})
	})
	router.POST("/contributions", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"hits": *hits})
	})
	router.GET("/health", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"hits": *hits})
	})
	return router
}

func TestMiddlewareServesSecondRequestFromCache(t *testing.T) {
	hits := 0
	router := newTestRouter(New(time.Minute), &hits)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/score/alice", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/score/alice", nil))

	assert.Equal(t, 1, hits, "second request must not reach the handler")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestMiddlewareKeysIncludeQuery(t *testing.T) {
	hits := 0
	router := newTestRouter(New(time.Minute), &hits)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/score/alice?weeks=4", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/score/alice?weeks=8", nil))

	assert.Equal(t, 2, hits, "different query strings cache independently")
}

func TestMiddlewareSkipsWritesAndOperationalEndpoints(t *testing.T) {
	hits := 0
	router := newTestRouter(New(time.Minute), &hits)

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/contributions", nil))
	}
	assert.Equal(t, 2, hits, "POST is never cached")

	hits = 0
	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	assert.Equal(t, 2, hits, "operational endpoints are never cached")
}

func TestMiddlewareDoesNotCacheErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	c := New(time.Minute)
	hits := 0
	router.Use(c.Middleware(monitoring.NewMetrics()))
	router.GET("/anomalies", func(ctx *gin.Context) {
		hits++
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "k must be positive"})
	})

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anomalies?k=-1", nil))
	}

	assert.Equal(t, 2, hits, "non-200 responses are not cached")
}
