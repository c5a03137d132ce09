// Package compressor gzip для запросов и JSON ответов.
package compressor

import (
	"io"
	"net/http"
	"strings"

	"github.com/Popolzen/shortlinks/internal/pool"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// compressible типы ответов, которые сжимаем. Архивы и картинки уже сжаты.
var compressible = []string{"application/json", "text/html", "text/plain"}

var writers = pool.New(func() *gzip.Writer {
	w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
	return w
}, func(w *gzip.Writer) {
	w.Reset(io.Discard)
})

type gzipWriter struct {
	gin.ResponseWriter
	writer     *gzip.Writer
	compressed bool
	decided    bool
}

func (g *gzipWriter) decide() {
	if g.decided {
		return
	}
	g.decided = true

	contentType := g.Header().Get("Content-Type")
	for _, ct := range compressible {
		if strings.Contains(contentType, ct) {
			g.Header().Set("Content-Encoding", "gzip")
			g.Header().Del("Content-Length")
			g.Header().Add("Vary", "Accept-Encoding")
			g.writer = writers.Get()
			g.writer.Reset(g.ResponseWriter)
			g.compressed = true
			return
		}
	}
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	g.decide()
	if g.compressed {
		return g.writer.Write(b)
	}
	return g.ResponseWriter.Write(b)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) Close() error {
	if !g.compressed {
		return nil
	}
	err := g.writer.Close()
	writers.Put(g.writer)
	return err
}

// Compresser распаковывает gzip запросы и сжимает ответы для клиентов с Accept-Encoding: gzip
func Compresser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.Contains(strings.ToLower(c.Request.Header.Get("Content-Encoding")), "gzip") {
			reader, err := gzip.NewReader(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Не удалось распаковать данные"})
				return
			}
			c.Request.Body = reader
			c.Request.Header.Del("Content-Encoding")
			defer reader.Close()
		}

		if strings.Contains(strings.ToLower(c.Request.Header.Get("Accept-Encoding")), "gzip") {
			gz := &gzipWriter{ResponseWriter: c.Writer}
			c.Writer = gz
			defer gz.Close()
		}

		c.Next()
	}
}
