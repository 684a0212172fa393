// Package autoreply drafts AI replies for visitors nobody has answered yet.
//
// Polling the chat triggers Decide. An eligible conversation gets a ReplyJob
// row, keyed by conversation and last message so repeated polls collapse into
// one job. The Worker drains the queue through the Generator, which asks the
// completion API for a reply and stores it in the message log.
package autoreply

import (
	"time"

	"github.com/packaginghippo/hippo/internal/models"
)

// Defaults for Policy and the Generator.
const (
	DefaultReplyDelay   = 5 * time.Second
	DefaultCooldown     = 10 * time.Second
	DefaultHistoryLimit = 30
)

// Skip reasons reported by Decide and the Generator.
const (
	ReasonNoConversation = "no conversation"
	ReasonNotActive      = "conversation is not active"
	ReasonHumanHandled   = "a human agent has taken over"
	ReasonNoMessages     = "conversation has no messages"
	ReasonNotVisitor     = "last message is not from the visitor"
	ReasonTooSoon        = "visitor message is too recent"
	ReasonCoolingDown    = "a reply was attempted recently"
	ReasonDuplicate      = "a reply is already queued for this message"
	ReasonSuperseded     = "a newer visitor message superseded this job"
)

// Policy holds the timing rules of the trigger.
type Policy struct {
	// ReplyDelay is how long the visitor's last message must sit unanswered.
	ReplyDelay time.Duration
	// Cooldown is the minimum gap between two reply attempts.
	Cooldown time.Duration
}

// DefaultPolicy returns the 5s delay / 10s cooldown policy.
func DefaultPolicy() Policy {
	return Policy{ReplyDelay: DefaultReplyDelay, Cooldown: DefaultCooldown}
}

// Decide reports whether an AI reply should be queued for conv, whose newest
// message is last. When it returns false, reason says why.
func (p Policy) Decide(now time.Time, conv *models.Conversation, last *models.Message) (bool, string) {
	switch {
	case conv == nil:
		return false, ReasonNoConversation
	case conv.Status != models.StatusActive:
		return false, ReasonNotActive
	case conv.IsHumanHandled():
		return false, ReasonHumanHandled
	case last == nil:
		return false, ReasonNoMessages
	case last.Sender != models.SenderVisitor:
		return false, ReasonNotVisitor
	case now.Sub(last.CreatedAt) <= p.ReplyDelay:
		return false, ReasonTooSoon
	case conv.AIAttemptedAt != nil && now.Sub(*conv.AIAttemptedAt) <= p.Cooldown:
		return false, ReasonCoolingDown
	}
	return true, ""
}
