package models

import "time"

// Message senders.
const (
	SenderVisitor = "visitor"
	SenderAgent   = "agent"
	SenderAI      = "ai"
)

// Message is one chat utterance within a conversation.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ConversationID uint      `gorm:"not null;index:idx_conversation_created"`
	Content        string    `gorm:"type:text;not null"`
	Sender         string    `gorm:"size:8;not null"`
	AgentName      string    `gorm:"size:64"`
	Read           bool      `gorm:"default:false"`
	CreatedAt      time.Time `gorm:"index:idx_conversation_created"`
}
