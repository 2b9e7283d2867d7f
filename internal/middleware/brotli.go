package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressOptions controls response compression.
type CompressOptions struct {
	Level int
	// Responses shorter than Threshold bytes are sent as is.
	Threshold int
	// ExcludedPrefixes lists path prefixes that are never compressed.
	ExcludedPrefixes []string
}

var defaultCompress = CompressOptions{
	Level:            brotli.DefaultCompression,
	Threshold:        1024,
	ExcludedPrefixes: []string{"/ws/", "/health"},
}

// compressWriter holds the body until Threshold bytes are seen, then switches to brotli.
type compressWriter struct {
	gin.ResponseWriter
	level     int
	threshold int
	pending   []byte
	br        *brotli.Writer
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.br != nil {
		return w.br.Write(p)
	}
	w.pending = append(w.pending, p...)
	if len(w.pending) < w.threshold {
		return len(p), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.br = brotli.NewWriterLevel(w.ResponseWriter, w.level)
	if _, err := w.br.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(p), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush sends what is held so far uncompressed if compression has not started.
func (w *compressWriter) Flush() {
	if w.br != nil {
		_ = w.br.Flush()
	} else if len(w.pending) > 0 {
		_, _ = w.ResponseWriter.Write(w.pending)
		w.pending = nil
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) finish() error {
	if w.br != nil {
		return w.br.Close()
	}
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	w.pending = nil
	return err
}

// Compress returns brotli compression with default options.
func Compress() gin.HandlerFunc {
	return CompressWith(defaultCompress)
}

// CompressWith returns brotli compression for clients that accept "br".
func CompressWith(opts CompressOptions) gin.HandlerFunc {
	if opts.Level < brotli.BestSpeed || opts.Level > brotli.BestCompression {
		opts.Level = brotli.DefaultCompression
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultCompress.Threshold
	}

	return func(c *gin.Context) {
		if !compressible(c, opts.ExcludedPrefixes) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &compressWriter{ResponseWriter: c.Writer, level: opts.Level, threshold: opts.Threshold}
		c.Writer = w
		defer func() {
			if err := w.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func compressible(c *gin.Context, excluded []string) bool {
	if c.Request.Method == http.MethodHead {
		return false
	}
	// Upgrades and event streams cannot be buffered.
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") ||
		strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return false
	}
	path := c.Request.URL.Path
	for _, prefix := range excluded {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, enc := range strings.Split(c.GetHeader("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
