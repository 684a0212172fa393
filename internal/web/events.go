package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	eventBatch     = 50
	eventHeartbeat = 15 * time.Second
)

// visitorMessageEvent tells the agent dashboard a visitor wrote something.
type visitorMessageEvent struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Unread         int64     `json:"unread"`
}

// events streams new visitor messages to the agent dashboard as server-sent
// events. Only messages written after the stream opens are sent.
func (a *adminHandlers) events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	lastSeenID, err := a.d.Chat.LatestMessageID(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	ticker := time.NewTicker(a.d.EventInterval)
	heartbeat := time.NewTicker(eventHeartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			msgs, err := a.d.Chat.VisitorMessagesAfter(ctx, lastSeenID, eventBatch)
			if err != nil {
				log.Printf("web: events: %v", err)
				continue
			}
			if len(msgs) == 0 {
				continue
			}
			lastSeenID = msgs[len(msgs)-1].ID

			unread, err := a.d.Chat.UnreadTotal(ctx)
			if err != nil {
				log.Printf("web: events: %v", err)
			}
			for _, m := range msgs {
				writeSSE(c.Writer, "message", visitorMessageEvent{
					ID:             m.ID,
					ConversationID: m.ConversationID,
					Content:        m.Content,
					CreatedAt:      m.CreatedAt,
					Unread:         unread,
				})
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
