package models

import "time"

// Reply job states.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobSkipped = "skipped"
	JobFailed  = "failed"
)

// ReplyJob is a queued request for an AI reply. IdempotencyKey is
// "<conversationID>:<lastMessageID>" so repeated triggers for the same
// unanswered message collapse into one row.
type ReplyJob struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID uint   `gorm:"not null;index"`
	MessageID      uint   `gorm:"not null"`
	IdempotencyKey string `gorm:"size:64;not null;uniqueIndex"`
	Status         string `gorm:"size:16;not null;default:pending;index"`
	Error          string `gorm:"type:text"`
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}
