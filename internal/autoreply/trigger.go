package autoreply

import (
	"context"
	"fmt"
	"time"

	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/metrics"
	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trigger queues reply jobs for conversations the visitor is polling.
type Trigger struct {
	db      *gorm.DB
	chat    *chat.Service
	policy  Policy
	metrics *metrics.Metrics
	now     func() time.Time
	wake    chan struct{}
}

// TriggerOpts holds parameters for creating a Trigger.
type TriggerOpts struct {
	DB      *gorm.DB
	Chat    *chat.Service
	Policy  Policy
	Metrics *metrics.Metrics // optional
	Now     func() time.Time // defaults to time.Now
}

// NewTrigger creates a Trigger. Zero policy durations take the defaults.
func NewTrigger(opts TriggerOpts) (*Trigger, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("autoreply: db is required")
	}
	if opts.Chat == nil {
		return nil, fmt.Errorf("autoreply: chat service is required")
	}
	if opts.Policy.ReplyDelay == 0 {
		opts.Policy.ReplyDelay = DefaultReplyDelay
	}
	if opts.Policy.Cooldown == 0 {
		opts.Policy.Cooldown = DefaultCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Trigger{
		db:      opts.DB,
		chat:    opts.Chat,
		policy:  opts.Policy,
		metrics: opts.Metrics,
		now:     opts.Now,
		wake:    make(chan struct{}, 1),
	}, nil
}

// Wake returns a channel that receives after a job is queued.
func (t *Trigger) Wake() <-chan struct{} {
	return t.wake
}

// Consider runs the trigger for conv. It returns true when a new reply job
// was queued and otherwise the reason nothing happened. It never blocks on
// the completion API.
func (t *Trigger) Consider(ctx context.Context, conv *models.Conversation) (bool, string, error) {
	if conv == nil {
		return false, ReasonNoConversation, nil
	}
	last, err := t.chat.LastMessage(ctx, conv.ID)
	if err != nil {
		return false, "", err
	}

	now := t.now()
	if ok, reason := t.policy.Decide(now, conv, last); !ok {
		return false, reason, nil
	}

	// Stamp the attempt first; of several concurrent pollers only one
	// matches the cutoff.
	cutoff := now.Add(-t.policy.Cooldown)
	stamp := t.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status = ? AND (handled_by IS NULL OR handled_by <> ?)", conv.ID, models.StatusActive, models.HandledByHuman).
		Where("ai_attempted_at IS NULL OR ai_attempted_at < ?", cutoff).
		UpdateColumn("ai_attempted_at", now)
	if stamp.Error != nil {
		return false, "", fmt.Errorf("autoreply: stamp attempt %d: %w", conv.ID, stamp.Error)
	}
	if stamp.RowsAffected == 0 {
		return false, ReasonCoolingDown, nil
	}

	job := models.ReplyJob{
		ConversationID: conv.ID,
		MessageID:      last.ID,
		IdempotencyKey: IdempotencyKey(conv.ID, last.ID),
		Status:         models.JobPending,
	}
	insert := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&job)
	if insert.Error != nil {
		return false, "", fmt.Errorf("autoreply: queue job %d: %w", conv.ID, insert.Error)
	}
	if insert.RowsAffected == 0 {
		return false, ReasonDuplicate, nil
	}

	t.metrics.JobQueued()
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true, "", nil
}

// IdempotencyKey identifies the reply to one visitor message.
func IdempotencyKey(conversationID, messageID uint) string {
	return fmt.Sprintf("%d:%d", conversationID, messageID)
}
