// Package chat implements the conversation store and message log behind the
// site's live chat widget.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/presence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalid is returned when a request is missing required fields.
	ErrInvalid = errors.New("chat: invalid request")
	// ErrNotFound is returned when the conversation does not exist.
	ErrNotFound = errors.New("chat: conversation not found")
	// ErrHumanHandled is returned when an AI reply arrives after a human
	// agent took the conversation over.
	ErrHumanHandled = errors.New("chat: conversation is handled by a human")
)

// SendRequest is one message to append. Visitor sends identify the
// conversation by VisitorID; agent and AI sends by ConversationID.
type SendRequest struct {
	Sender         string
	Content        string
	VisitorID      string
	VisitorName    string
	VisitorEmail   string
	ConversationID uint
}

// SendResult is the stored message and the conversation it landed in.
type SendResult struct {
	Message        models.Message
	ConversationID uint
}

// Service reads and writes conversations and messages.
type Service struct {
	db       *gorm.DB
	presence presence.Tracker
	roster   *Roster
	now      func() time.Time
}

// Options holds parameters for creating a Service.
type Options struct {
	DB       *gorm.DB
	Presence presence.Tracker // optional; typing stamps are cleared on send
	Roster   *Roster
	Now      func() time.Time // defaults to time.Now
}

// NewService creates a chat Service.
func NewService(opts Options) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("chat: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:       opts.DB,
		presence: opts.Presence,
		roster:   opts.Roster,
		now:      now,
	}, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Send appends a message from a visitor, a human agent, or the AI.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	switch req.Sender {
	case models.SenderVisitor:
		return s.sendVisitor(ctx, req)
	case models.SenderAgent:
		return s.sendStaff(ctx, req.ConversationID, req.Content, models.SenderAgent, false)
	case models.SenderAI:
		return s.sendStaff(ctx, req.ConversationID, req.Content, models.SenderAI, false)
	default:
		return nil, fmt.Errorf("%w: unknown sender %q", ErrInvalid, req.Sender)
	}
}

// AppendAIReply stores an AI reply. When closing is set the conversation is
// marked ai-closed; a later visitor message reopens it. Nothing is stored
// and ErrHumanHandled is returned once a human agent has replied.
func (s *Service) AppendAIReply(ctx context.Context, conversationID uint, content string, closing bool) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	return s.sendStaff(ctx, conversationID, content, models.SenderAI, closing)
}

func (s *Service) sendVisitor(ctx context.Context, req SendRequest) (*SendResult, error) {
	req.VisitorID = strings.TrimSpace(req.VisitorID)
	req.VisitorName = strings.TrimSpace(req.VisitorName)
	var missing []string
	if req.VisitorID == "" {
		missing = append(missing, "visitorId")
	}
	if req.VisitorName == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrInvalid, strings.Join(missing, " and "))
	}

	now := s.now()
	var result SendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := s.findOrCreate(tx, req)
		if err != nil {
			return err
		}

		msg := models.Message{
			ConversationID: conv.ID,
			Content:        req.Content,
			Sender:         models.SenderVisitor,
			CreatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("chat: write visitor message: %w", err)
		}

		updates := map[string]interface{}{
			"unread_count":    gorm.Expr("unread_count + ?", 1),
			"last_message_at": now,
			"status":          models.StatusActive,
			"visitor_name":    req.VisitorName,
		}
		if email := strings.TrimSpace(req.VisitorEmail); email != "" {
			updates["visitor_email"] = email
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("chat: update conversation %d: %w", conv.ID, err)
		}

		result = SendResult{Message: msg, ConversationID: conv.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.clearTyping(ctx, result.ConversationID, presence.RoleVisitor)
	return &result, nil
}

// findOrCreate returns the visitor's conversation, creating it with a roster
// display name on first contact. Concurrent first sends converge on one row
// through the unique visitor_id index.
func (s *Service) findOrCreate(tx *gorm.DB, req SendRequest) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.Where("visitor_id = ?", req.VisitorID).Limit(1).Find(&conv).Error; err != nil {
		return nil, fmt.Errorf("chat: find conversation for %s: %w", req.VisitorID, err)
	}
	if conv.ID != 0 {
		return &conv, nil
	}

	conv = models.Conversation{
		VisitorID:     req.VisitorID,
		VisitorName:   req.VisitorName,
		VisitorEmail:  strings.TrimSpace(req.VisitorEmail),
		Status:        models.StatusActive,
		AssignedAgent: s.roster.Pick(),
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}},
		DoNothing: true,
	}).Create(&conv)
	if result.Error != nil {
		return nil, fmt.Errorf("chat: create conversation for %s: %w", req.VisitorID, result.Error)
	}
	if result.RowsAffected == 1 {
		return &conv, nil
	}

	// Lost the insert race; use the winner's row.
	conv = models.Conversation{}
	if err := tx.Where("visitor_id = ?", req.VisitorID).First(&conv).Error; err != nil {
		return nil, fmt.Errorf("chat: reload conversation for %s: %w", req.VisitorID, err)
	}
	return &conv, nil
}

func (s *Service) sendStaff(ctx context.Context, conversationID uint, content, sender string, closing bool) (*SendResult, error) {
	if conversationID == 0 {
		return nil, fmt.Errorf("%w: conversationId is required", ErrInvalid)
	}

	now := s.now()
	var result SendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := loadConversation(tx, conversationID)
		if err != nil {
			return err
		}
		if sender == models.SenderAI && conv.IsHumanHandled() {
			return fmt.Errorf("%w: %d", ErrHumanHandled, conv.ID)
		}

		msg := models.Message{
			ConversationID: conv.ID,
			Content:        content,
			Sender:         sender,
			AgentName:      conv.AssignedAgent,
			CreatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("chat: write %s message: %w", sender, err)
		}

		updates := map[string]interface{}{
			"last_message_at": now,
			"status":          models.StatusActive,
		}
		if sender == models.SenderAgent {
			updates["handled_by"] = models.HandledByHuman
		} else {
			// Human takeover is sticky.
			updates["handled_by"] = gorm.Expr("CASE WHEN handled_by = ? THEN ? ELSE ? END",
				models.HandledByHuman, models.HandledByHuman, models.HandledByAI)
			updates["ai_attempted_at"] = nil
			if closing {
				updates["status"] = models.StatusAIClosed
			}
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("chat: update conversation %d: %w", conv.ID, err)
		}

		result = SendResult{Message: msg, ConversationID: conv.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.clearTyping(ctx, conversationID, presence.RoleAgent)
	return &result, nil
}

func (s *Service) clearTyping(ctx context.Context, conversationID uint, role string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Clear(ctx, conversationID, role); err != nil {
		log.Printf("chat: clear %s typing for %d: %v", role, conversationID, err)
	}
}

func loadConversation(db *gorm.DB, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := db.Limit(1).Find(&conv, id).Error; err != nil {
		return nil, fmt.Errorf("chat: load conversation %d: %w", id, err)
	}
	if conv.ID == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &conv, nil
}
