// Package middleware holds transport-level HTTP middleware shared across
// the engine's endpoints.
package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var gzipPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	return w.gz.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.gz.Write([]byte(s))
}

// Compression gzips JSON responses for clients that accept it. The metrics
// exposition endpoint negotiates its own encoding and is skipped.
func Compression() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" ||
			!strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gz := gzipPool.Get().(*gzip.Writer)
		defer gzipPool.Put(gz)
		gz.Reset(c.Writer)

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer.Header().Del("Content-Length")

		wrapped := &gzipWriter{ResponseWriter: c.Writer, gz: gz}
		c.Writer = wrapped

		defer func() {
			gz.Close()
			c.Writer = wrapped.ResponseWriter
		}()

		c.Next()
	}
}

// NoCache disables intermediary caching on operational endpoints.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet &&
			(c.Request.URL.Path == "/health" || c.Request.URL.Path == "/cache/stats") {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}
