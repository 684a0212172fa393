package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/gorm"
)

// DBTracker keeps heartbeats on the conversation row.
type DBTracker struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

// NewDBTracker creates a DBTracker. A zero window uses DefaultWindow and a
// nil clock uses time.Now.
func NewDBTracker(db *gorm.DB, window time.Duration, now func() time.Time) *DBTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &DBTracker{db: db, window: window, now: now}
}

func column(role string) string {
	if role == RoleAgent {
		return "agent_typing_at"
	}
	return "visitor_typing_at"
}

// Touch stamps the role's heartbeat with the current time.
func (t *DBTracker) Touch(ctx context.Context, conversationID uint, role string) error {
	return t.set(ctx, conversationID, role, t.now())
}

// Clear removes the role's heartbeat.
func (t *DBTracker) Clear(ctx context.Context, conversationID uint, role string) error {
	return t.set(ctx, conversationID, role, nil)
}

func (t *DBTracker) set(ctx context.Context, conversationID uint, role string, value interface{}) error {
	if err := checkRole(role); err != nil {
		return err
	}
	result := t.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn(column(role), value)
	if result.Error != nil {
		return fmt.Errorf("presence: update %s for %d: %w", role, conversationID, result.Error)
	}
	// MySQL reports zero affected rows when clearing an already-empty stamp.
	if result.RowsAffected == 0 && value != nil {
		return fmt.Errorf("%w: %d", ErrNoConversation, conversationID)
	}
	return nil
}

// IsTyping reports whether the role's heartbeat is inside the window.
func (t *DBTracker) IsTyping(ctx context.Context, conversationID uint, role string) (bool, error) {
	if err := checkRole(role); err != nil {
		return false, err
	}
	var conv models.Conversation
	err := t.db.WithContext(ctx).
		Select("id", "visitor_typing_at", "agent_typing_at").
		Limit(1).Find(&conv, conversationID).Error
	if err != nil {
		return false, fmt.Errorf("presence: load %d: %w", conversationID, err)
	}
	if conv.ID == 0 {
		return false, fmt.Errorf("%w: %d", ErrNoConversation, conversationID)
	}
	stamp := conv.VisitorTypingAt
	if role == RoleAgent {
		stamp = conv.AgentTypingAt
	}
	if stamp == nil {
		return false, nil
	}
	return Within(t.now(), *stamp, t.window), nil
}
