package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/packaginghippo/hippo/internal/auth"
)

// registerRoutes sets up every API route on the gin router.
func registerRoutes(router *gin.Engine, d Deps) {
	if d.StaticDir != "" {
		router.Static("/static", d.StaticDir)
	}

	router.GET("/healthz", handleHealth(d))
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	h := &chatHandlers{d: d}
	api := router.Group("/api")
	api.GET("/chat/visitor-id", handleVisitorID())
	api.POST("/chat/messages", h.send)
	api.GET("/chat/messages", h.poll)
	api.GET("/chat/stream", h.stream)
	api.POST("/chat/typing", h.setTyping)
	api.GET("/chat/typing", h.getTyping)
	api.POST("/chat/rating", h.rate)
	api.GET("/redirects/lookup", handleRedirectLookup(d))
	api.POST("/inquiries", handleInquiryCreate(d))

	admin := api.Group("/admin")
	if d.Issuer != nil {
		admin.Use(auth.RequireAdmin(d.Issuer))
	} else {
		admin.Use(adminDisabled())
	}
	a := &adminHandlers{d: d}
	admin.GET("/conversations", a.listConversations)
	admin.GET("/conversations/:id", a.openConversation)
	admin.POST("/conversations/:id/messages", a.sendAgent)
	admin.POST("/conversations/:id/typing", a.agentTyping)
	admin.POST("/conversations/:id/close", a.closeConversation)
	admin.POST("/chat/ai-reply", a.aiReply)
	admin.GET("/events", a.events)

	admin.GET("/redirects", a.listRedirects)
	admin.POST("/redirects", a.createRedirect)
	admin.PUT("/redirects/:id", a.updateRedirect)
	admin.DELETE("/redirects/:id", a.deleteRedirect)

	admin.GET("/inquiries", a.listInquiries)
	admin.PATCH("/inquiries/:id", a.updateInquiry)
	admin.DELETE("/inquiries/:id", a.deleteInquiry)
}

func handleHealth(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleNotFound(site string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAPIPath(c.Request.URL.Path) || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.HTML(http.StatusNotFound, "404.html", gin.H{
			"site": site,
			"path": c.Request.URL.Path,
		})
	}
}

func adminDisabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin api is not configured"})
	}
}
