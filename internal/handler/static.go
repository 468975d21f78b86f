package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// SPA serves a built single-page app from Dir. Unknown non-API paths fall
// back to index.html so client-side routes survive a reload.
type SPA struct {
	Dir string
}

func (s *SPA) NoRoute(c *gin.Context) {
	p := c.Request.URL.Path
	if strings.HasPrefix(p, "/api/") || p == "/api" || s.Dir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	clean := path.Clean("/" + p)
	file := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	index := filepath.Join(s.Dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(index)
}
