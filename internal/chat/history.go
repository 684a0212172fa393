package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/gorm"
)

// Conversation returns the conversation with id.
func (s *Service) Conversation(ctx context.Context, id uint) (*models.Conversation, error) {
	return loadConversation(s.db.WithContext(ctx), id)
}

// ConversationByVisitor returns the visitor's conversation, or nil when the
// visitor has never sent a message.
func (s *Service) ConversationByVisitor(ctx context.Context, visitorID string) (*models.Conversation, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, fmt.Errorf("%w: visitorId is required", ErrInvalid)
	}
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Where("visitor_id = ?", visitorID).Limit(1).Find(&conv).Error; err != nil {
		return nil, fmt.Errorf("chat: find conversation for %s: %w", visitorID, err)
	}
	if conv.ID == 0 {
		return nil, nil
	}
	return &conv, nil
}

// VisitorHistory returns the visitor's conversation and its messages in
// chronological order. Both are empty for an unknown visitor.
func (s *Service) VisitorHistory(ctx context.Context, visitorID string) (*models.Conversation, []models.Message, error) {
	conv, err := s.ConversationByVisitor(ctx, visitorID)
	if err != nil || conv == nil {
		return nil, nil, err
	}
	msgs, err := s.Messages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// ConversationHistory returns a conversation and its messages without
// touching read state.
func (s *Service) ConversationHistory(ctx context.Context, id uint) (*models.Conversation, []models.Message, error) {
	conv, err := s.Conversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// Messages returns every message of a conversation, oldest first.
func (s *Service) Messages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("chat: list messages for %d: %w", conversationID, err)
	}
	return msgs, nil
}

// RecentMessages returns at most limit of the newest messages, oldest first.
// A limit of zero or less returns the whole log.
func (s *Service) RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return s.Messages(ctx, conversationID)
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("chat: recent messages for %d: %w", conversationID, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastMessage returns the newest message of a conversation, or nil.
func (s *Service) LastMessage(ctx context.Context, conversationID uint) (*models.Message, error) {
	msgs, err := s.RecentMessages(ctx, conversationID, 1)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// List returns conversations ordered by most recent activity. An empty
// status lists all of them.
func (s *Service) List(ctx context.Context, status string) ([]models.Conversation, error) {
	q := s.db.WithContext(ctx).Order("last_message_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("chat: list conversations: %w", err)
	}
	return convs, nil
}

// OpenForAgent returns a conversation with its messages and marks the
// visitor's messages read.
func (s *Service) OpenForAgent(ctx context.Context, id uint) (*models.Conversation, []models.Message, error) {
	var conv *models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadConversation(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Message{}).
			Where(map[string]interface{}{
				"conversation_id": id,
				"sender":          models.SenderVisitor,
				"read":            false,
			}).
			Update("read", true).Error; err != nil {
			return fmt.Errorf("chat: mark read %d: %w", id, err)
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", id).
			UpdateColumn("unread_count", 0).Error; err != nil {
			return fmt.Errorf("chat: reset unread %d: %w", id, err)
		}
		c.UnreadCount = 0
		conv = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// Close marks a conversation closed. A later visitor message reopens it.
func (s *Service) Close(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("status", models.StatusClosed)
	if result.Error != nil {
		return fmt.Errorf("chat: close %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Rate stores the visitor's 1-5 rating and optional feedback. Rating is
// accepted whatever the conversation's status.
func (s *Service) Rate(ctx context.Context, visitorID string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalid)
	}
	conv, err := s.ConversationByVisitor(ctx, visitorID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: visitor %s", ErrNotFound, visitorID)
	}
	err = s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"rating":   rating,
			"feedback": strings.TrimSpace(feedback),
			"rated_at": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("chat: rate %d: %w", conv.ID, err)
	}
	return nil
}

// LatestMessageID returns the highest message id, or 0 when there are none.
func (s *Service) LatestMessageID(ctx context.Context) (uint, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Select("id").Order("id DESC").Limit(1).Find(&msg).Error; err != nil {
		return 0, fmt.Errorf("chat: latest message id: %w", err)
	}
	return msg.ID, nil
}

// VisitorMessagesAfter returns up to limit visitor messages with an id above
// afterID, oldest first.
func (s *Service) VisitorMessagesAfter(ctx context.Context, afterID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("id > ? AND sender = ?", afterID, models.SenderVisitor).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("chat: visitor messages after %d: %w", afterID, err)
	}
	return msgs, nil
}

// UnreadTotal sums the unread counters of every conversation.
func (s *Service) UnreadTotal(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("chat: unread total: %w", err)
	}
	return total, nil
}
