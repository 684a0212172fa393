package redirect

import (
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/packaginghippo/hippo/internal/metrics"
)

// skipPrefixes are never considered for redirects.
var skipPrefixes = []string{"/api/", "/static/", "/_next/", "/metrics", "/healthz"}

// assetExts are file types served as site assets. Other extensions
// (.html, .php, .pdf) are legacy page URLs and stay redirectable.
var assetExts = map[string]bool{
	".js": true, ".mjs": true, ".css": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".webp": true, ".avif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".xml": true, ".txt": true, ".json": true, ".webmanifest": true,
	".mp4": true, ".webm": true,
}

// Skip reports whether a request path is static or API traffic that the
// resolver must not rewrite before routing.
func Skip(p string) bool {
	return reserved(p) || assetExts[strings.ToLower(path.Ext(p))]
}

func reserved(p string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Middleware consults the resolver before normal routing for every page
// request. Lookup failures are logged and the request continues unchanged.
func Middleware(s *Service, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isPageRequest(c.Request) {
			c.Next()
			return
		}
		if serve(c, s, m) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// NotFoundHandler is the fallback for unmatched routes. Nothing was served
// for the path, so it checks the resolver once more whatever the extension
// and otherwise delegates to notFound.
func NotFoundHandler(s *Service, m *metrics.Metrics, notFound gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isGet(c.Request) && !reserved(c.Request.URL.Path) && serve(c, s, m) {
			return
		}
		notFound(c)
	}
}

func serve(c *gin.Context, s *Service, m *metrics.Metrics) bool {
	res, err := s.Lookup(c.Request.Context(), c.Request.URL.Path)
	if err != nil {
		log.Printf("redirect: %v", err)
		return false
	}
	if !res.Found {
		return false
	}
	m.RedirectServed(res.Type)
	c.Redirect(res.Type, res.TargetURL)
	return true
}

func isGet(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

func isPageRequest(r *http.Request) bool {
	return isGet(r) && !Skip(r.URL.Path)
}
