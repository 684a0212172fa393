package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/presence"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadLimit    = 512
)

type chatHandlers struct {
	d Deps
}

func handleVisitorID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"visitorId": uuid.NewString()})
	}
}

type sendBody struct {
	VisitorID string `json:"visitorId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Content   string `json:"content"`
}

// send appends a visitor message. Staff replies go through the admin API.
func (h *chatHandlers) send(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	res, err := h.d.Chat.Send(c.Request.Context(), chat.SendRequest{
		Sender:       models.SenderVisitor,
		Content:      body.Content,
		VisitorID:    body.VisitorID,
		VisitorName:  body.Name,
		VisitorEmail: body.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":        toMessage(res.Message),
		"conversationId": res.ConversationID,
	})
}

type pollResponse struct {
	ConversationID uint         `json:"conversationId,omitempty"`
	Messages       []messageDTO `json:"messages"`
	Status         string       `json:"status"`
	AgentName      string       `json:"agentName"`
	AgentTyping    bool         `json:"agentTyping"`
}

// signature changes whenever the visitor's view of the conversation does.
func (p *pollResponse) signature() string {
	var lastID uint
	if n := len(p.Messages); n > 0 {
		lastID = p.Messages[n-1].ID
	}
	return fmt.Sprintf("%d/%d/%s/%t", len(p.Messages), lastID, p.Status, p.AgentTyping)
}

// snapshot loads the visitor's conversation and, as a side effect, gives the
// AI trigger a chance to queue a reply. Trigger failures never reach the
// visitor.
func (h *chatHandlers) snapshot(ctx context.Context, visitorID string) (*pollResponse, error) {
	conv, msgs, err := h.d.Chat.VisitorHistory(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	resp := &pollResponse{Messages: toMessages(msgs)}
	if conv == nil {
		return resp, nil
	}
	resp.ConversationID = conv.ID
	resp.Status = conv.Status
	resp.AgentName = conv.AssignedAgent

	typing, err := h.d.Presence.IsTyping(ctx, conv.ID, presence.RoleAgent)
	if err != nil {
		log.Printf("web: agent typing for %d: %v", conv.ID, err)
	}
	resp.AgentTyping = typing

	if h.d.Trigger != nil {
		if _, _, err := h.d.Trigger.Consider(ctx, conv); err != nil {
			log.Printf("web: ai trigger for %d: %v", conv.ID, err)
		}
	}
	return resp, nil
}

func (h *chatHandlers) poll(c *gin.Context) {
	visitorID := c.Query("visitorId")
	if visitorID == "" {
		badRequest(c, "visitorId is required")
		return
	}
	resp, err := h.snapshot(c.Request.Context(), visitorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// stream pushes the same payload as poll over a websocket whenever it
// changes. Each refresh counts as a poll for the AI trigger.
func (h *chatHandlers) stream(c *gin.Context) {
	visitorID := c.Query("visitorId")
	if visitorID == "" {
		badRequest(c, "visitorId is required")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(h.d.AllowedOrigins, origin) || sameHost(r, origin)
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("web: upgrade stream for %s: %v", visitorID, err)
		return
	}
	defer conn.Close()

	// The client never sends anything useful; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(streamReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.d.StreamInterval)
	defer ticker.Stop()

	var last string
	for {
		resp, err := h.snapshot(ctx, visitorID)
		if err != nil {
			log.Printf("web: stream for %s: %v", visitorID, err)
			return
		}
		if sig := resp.signature(); sig != last {
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
			last = sig
		}

		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func sameHost(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

type typingBody struct {
	VisitorID string `json:"visitorId"`
	Role      string `json:"role"`
}

// resolveConversation finds the conversation a typing call refers to. A
// visitor without a conversation yet yields 0 and no error.
func (h *chatHandlers) resolveConversation(ctx context.Context, visitorID string, conversationID uint) (uint, error) {
	if conversationID != 0 {
		conv, err := h.d.Chat.Conversation(ctx, conversationID)
		if err != nil {
			return 0, err
		}
		return conv.ID, nil
	}
	if visitorID == "" {
		return 0, fmt.Errorf("%w: visitorId or conversationId is required", chat.ErrInvalid)
	}
	conv, err := h.d.Chat.ConversationByVisitor(ctx, visitorID)
	if err != nil || conv == nil {
		return 0, err
	}
	return conv.ID, nil
}

// setTyping records the visitor's typing heartbeat. Agents stamp theirs
// through the admin API.
func (h *chatHandlers) setTyping(c *gin.Context) {
	var body typingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if _, err := presence.Other(body.Role); err != nil {
		writeError(c, err)
		return
	}
	if body.Role != presence.RoleVisitor {
		c.JSON(http.StatusForbidden, gin.H{"error": "agent typing requires the admin API"})
		return
	}
	if body.VisitorID == "" {
		badRequest(c, "visitorId is required")
		return
	}
	ctx := c.Request.Context()
	id, err := h.resolveConversation(ctx, body.VisitorID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	if id == 0 {
		c.JSON(http.StatusOK, gin.H{"isTyping": false})
		return
	}
	if err := h.d.Presence.Touch(ctx, id, presence.RoleVisitor); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isTyping": true})
}

// getTyping reports whether the party opposite the caller's role is typing.
func (h *chatHandlers) getTyping(c *gin.Context) {
	other, err := presence.Other(c.Query("role"))
	if err != nil {
		writeError(c, err)
		return
	}
	var conversationID uint
	if raw := c.Query("conversationId"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			badRequest(c, "invalid conversationId")
			return
		}
		conversationID = uint(n)
	}
	ctx := c.Request.Context()
	id, err := h.resolveConversation(ctx, c.Query("visitorId"), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	if id == 0 {
		c.JSON(http.StatusOK, gin.H{"isTyping": false})
		return
	}
	typing, err := h.d.Presence.IsTyping(ctx, id, other)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isTyping": typing})
}

type ratingBody struct {
	VisitorID string `json:"visitorId"`
	Rating    int    `json:"rating"`
	Feedback  string `json:"feedback"`
}

func (h *chatHandlers) rate(c *gin.Context) {
	var body ratingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if body.VisitorID == "" {
		badRequest(c, "visitorId is required")
		return
	}
	if err := h.d.Chat.Rate(c.Request.Context(), body.VisitorID, body.Rating, body.Feedback); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func handleRedirectLookup(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Query("path")
		if p == "" {
			badRequest(c, "path is required")
			return
		}
		res, err := d.Redirects.Lookup(c.Request.Context(), p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
