package models

import "time"

// Conversation statuses.
const (
	StatusActive   = "active"
	StatusClosed   = "closed"
	StatusAIClosed = "ai-closed"
)

// Handled-by values. An empty HandledBy means nobody has replied yet.
const (
	HandledByAI    = "ai"
	HandledByHuman = "human"
)

// Conversation is one visitor's support chat session.
type Conversation struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	VisitorID       string     `gorm:"size:64;not null;uniqueIndex"`
	VisitorName     string     `gorm:"size:128"`
	VisitorEmail    string     `gorm:"size:256"`
	Status          string     `gorm:"size:16;not null;default:active;index"`
	HandledBy       string     `gorm:"size:8"`
	AssignedAgent   string     `gorm:"size:64"`
	LastMessageAt   *time.Time `gorm:"index"`
	VisitorTypingAt *time.Time
	AgentTypingAt   *time.Time
	AIAttemptedAt   *time.Time
	Rating          *int
	RatedAt         *time.Time `gorm:"index"`
	Feedback        string     `gorm:"type:text"`
	UnreadCount     int        `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// IsHumanHandled reports whether a human agent has taken over the conversation.
func (c *Conversation) IsHumanHandled() bool {
	return c.HandledBy == HandledByHuman
}
