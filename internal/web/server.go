// Package web serves the public chat, redirect and inquiry API plus the
// bearer-protected admin API.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/packaginghippo/hippo/internal/auth"
	"github.com/packaginghippo/hippo/internal/autoreply"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/inquiry"
	"github.com/packaginghippo/hippo/internal/metrics"
	"github.com/packaginghippo/hippo/internal/presence"
	"github.com/packaginghippo/hippo/internal/redirect"
	"gorm.io/gorm"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Deps are the services the HTTP layer delegates to.
type Deps struct {
	DB        *gorm.DB
	Chat      *chat.Service
	Presence  presence.Tracker
	Redirects *redirect.Service
	Inquiries *inquiry.Service

	Trigger   *autoreply.Trigger   // optional; nil disables AI replies
	Generator *autoreply.Generator // optional; nil disables the ai-reply endpoint
	Issuer    *auth.Issuer         // optional; nil disables the admin API
	Metrics   *metrics.Metrics     // optional

	SiteName       string
	StaticDir      string
	AllowedOrigins []string
	StreamInterval time.Duration // visitor websocket refresh, defaults to 2s
	EventInterval  time.Duration // admin SSE poll, defaults to 3s
}

// StartOpts holds parameters for starting the HTTP server.
type StartOpts struct {
	Deps
	Port int
	Out  io.Writer // defaults to os.Stdout
}

// Start launches the server and blocks until ctx is cancelled or the
// listener fails.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(opts.Out, "Hippo listening on http://localhost:%d\n", opts.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: listen: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route and middleware attached.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Chat == nil {
		return nil, fmt.Errorf("web: chat service is required")
	}
	if d.Presence == nil {
		return nil, fmt.Errorf("web: presence tracker is required")
	}
	if d.Redirects == nil {
		return nil, fmt.Errorf("web: redirect service is required")
	}
	if d.Inquiries == nil {
		return nil, fmt.Errorf("web: inquiry service is required")
	}
	if d.SiteName == "" {
		d.SiteName = "Packaging Hippo"
	}
	if d.StreamInterval <= 0 {
		d.StreamInterval = 2 * time.Second
	}
	if d.EventInterval <= 0 {
		d.EventInterval = 3 * time.Second
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(d.Metrics.Middleware())
	router.Use(corsMiddleware(d.AllowedOrigins))
	router.Use(redirect.Middleware(d.Redirects, d.Metrics))
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, d)
	router.NoRoute(redirect.NotFoundHandler(d.Redirects, d.Metrics, handleNotFound(d.SiteName)))
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return tmpl, nil
}
