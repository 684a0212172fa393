package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/inquiry"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/presence"
	"github.com/packaginghippo/hippo/internal/redirect"
)

type adminHandlers struct {
	d Deps
}

func (a *adminHandlers) listConversations(c *gin.Context) {
	convs, err := a.d.Chat.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]conversationDTO, len(convs))
	for i, conv := range convs {
		out[i] = toConversation(conv)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// openConversation returns the full thread and marks the visitor's
// messages read.
func (a *adminHandlers) openConversation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	conv, msgs, err := a.d.Chat.OpenForAgent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": toConversation(*conv),
		"messages":     toMessages(msgs),
	})
}

type agentMessageBody struct {
	Content string `json:"content"`
}

func (a *adminHandlers) sendAgent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var body agentMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	res, err := a.d.Chat.Send(c.Request.Context(), chat.SendRequest{
		Sender:         models.SenderAgent,
		Content:        body.Content,
		ConversationID: id,
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

func (a *adminHandlers) agentTyping(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.d.Presence.Touch(c.Request.Context(), id, presence.RoleAgent); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isTyping": true})
}

func (a *adminHandlers) closeConversation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.d.Chat.Close(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type aiReplyBody struct {
	ConversationID uint `json:"conversationId"`
}

// aiReply generates a reply synchronously. Queued replies take the worker
// path; this endpoint lets staff force one from the dashboard.
func (a *adminHandlers) aiReply(c *gin.Context) {
	if a.d.Generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai replies are not configured"})
		return
	}
	var body aiReplyBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ConversationID == 0 {
		badRequest(c, "conversationId is required")
		return
	}
	res, err := a.d.Generator.Generate(c.Request.Context(), body.ConversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Skipped {
		c.JSON(http.StatusOK, gin.H{"skipped": true, "reason": res.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": toMessage(*res.Message),
		"closing": res.Closing,
	})
}

func (a *adminHandlers) listRedirects(c *gin.Context) {
	rules, err := a.d.Redirects.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]redirectDTO, len(rules))
	for i, r := range rules {
		out[i] = toRedirect(r)
	}
	c.JSON(http.StatusOK, gin.H{"redirects": out})
}

func (a *adminHandlers) createRedirect(c *gin.Context) {
	var in redirect.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	rule, err := a.d.Redirects.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRedirect(*rule))
}

func (a *adminHandlers) updateRedirect(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in redirect.RuleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	rule, err := a.d.Redirects.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRedirect(*rule))
}

func (a *adminHandlers) deleteRedirect(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.d.Redirects.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func handleInquiryCreate(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in inquiry.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		inq, err := d.Inquiries.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toInquiry(*inq))
	}
}

func (a *adminHandlers) listInquiries(c *gin.Context) {
	list, err := a.d.Inquiries.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]inquiryDTO, len(list))
	for i, q := range list {
		out[i] = toInquiry(q)
	}
	c.JSON(http.StatusOK, gin.H{"inquiries": out})
}

type inquiryStatusBody struct {
	Status string `json:"status"`
}

func (a *adminHandlers) updateInquiry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var body inquiryStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	inq, err := a.d.Inquiries.SetStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInquiry(*inq))
}

func (a *adminHandlers) deleteInquiry(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.d.Inquiries.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
