package web

import (
	"errors"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/inquiry"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/presence"
	"github.com/packaginghippo/hippo/internal/redirect"
)

// writeError maps service errors onto status codes. Server-side failures are
// logged and the client only sees a generic message.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalid),
		errors.Is(err, redirect.ErrInvalid),
		errors.Is(err, inquiry.ErrInvalid),
		errors.Is(err, presence.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotFound),
		errors.Is(err, redirect.ErrNotFound),
		errors.Is(err, inquiry.ErrNotFound),
		errors.Is(err, presence.ErrNoConversation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, redirect.ErrConflict),
		errors.Is(err, chat.ErrHumanHandled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("web: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// idParam parses the :id path parameter.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/")
}

// corsMiddleware lets the site's own origins call the chat API from the
// browser. An origin of "*" allows any caller.
func corsMiddleware(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origins []string, origin string) bool {
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

type messageDTO struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	Content        string    `json:"content"`
	Sender         string    `json:"sender"`
	AgentName      string    `json:"agentName,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMessage(m models.Message) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Sender:         m.Sender,
		AgentName:      m.AgentName,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
}

func toMessages(ms []models.Message) []messageDTO {
	out := make([]messageDTO, len(ms))
	for i, m := range ms {
		out[i] = toMessage(m)
	}
	return out
}

type conversationDTO struct {
	ID            uint       `json:"id"`
	VisitorID     string     `json:"visitorId"`
	VisitorName   string     `json:"visitorName"`
	VisitorEmail  string     `json:"visitorEmail,omitempty"`
	Status        string     `json:"status"`
	HandledBy     string     `json:"handledBy,omitempty"`
	AgentName     string     `json:"agentName"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount   int        `json:"unreadCount"`
	Rating        *int       `json:"rating,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toConversation(c models.Conversation) conversationDTO {
	return conversationDTO{
		ID:            c.ID,
		VisitorID:     c.VisitorID,
		VisitorName:   c.VisitorName,
		VisitorEmail:  c.VisitorEmail,
		Status:        c.Status,
		HandledBy:     c.HandledBy,
		AgentName:     c.AssignedAgent,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
		Rating:        c.Rating,
		Feedback:      c.Feedback,
		CreatedAt:     c.CreatedAt,
	}
}

type redirectDTO struct {
	ID        uint      `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      int       `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toRedirect(r models.Redirect) redirectDTO {
	return redirectDTO{
		ID:        r.ID,
		Source:    r.SourcePath,
		Target:    r.TargetPath,
		Type:      r.StatusCode(),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

type inquiryDTO struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	ProductType string    `json:"productType,omitempty"`
	Quantity    string    `json:"quantity,omitempty"`
	Message     string    `json:"message"`
	SourcePage  string    `json:"sourcePage,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toInquiry(q models.Inquiry) inquiryDTO {
	return inquiryDTO{
		ID:          q.ID,
		Name:        q.Name,
		Email:       q.Email,
		Phone:       q.Phone,
		Company:     q.Company,
		ProductType: q.ProductType,
		Quantity:    q.Quantity,
		Message:     q.Message,
		SourcePage:  q.SourcePage,
		Status:      q.Status,
		CreatedAt:   q.CreatedAt,
	}
}
