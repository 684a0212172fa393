// Package digest summarises chat and inquiry activity for the sales team on a
// cron schedule.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/notify"
	"gorm.io/gorm"
)

// Period is the window each digest covers.
const Period = 24 * time.Hour

// Report holds activity counts for one period.
type Report struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	NewConversations int
	VisitorMessages  int
	AIReplies        int
	AgentReplies     int
	AIClosed         int
	HumanHandled     int
	Ratings          int
	AvgRating        float64
	Inquiries        int
}

// Empty reports whether nothing happened in the period.
func (r *Report) Empty() bool {
	return r.NewConversations == 0 && r.VisitorMessages == 0 && r.AIReplies == 0 &&
		r.AgentReplies == 0 && r.Inquiries == 0
}

// Build counts activity in [since, until).
func Build(ctx context.Context, db *gorm.DB, since, until time.Time) (*Report, error) {
	db = db.WithContext(ctx)
	r := &Report{PeriodStart: since, PeriodEnd: until}

	counts := []struct {
		dst   *int
		model interface{}
		where string
		args  []interface{}
	}{
		{&r.NewConversations, &models.Conversation{}, "created_at >= ? AND created_at < ?", nil},
		{&r.VisitorMessages, &models.Message{}, "sender = ? AND created_at >= ? AND created_at < ?", []interface{}{models.SenderVisitor}},
		{&r.AIReplies, &models.Message{}, "sender = ? AND created_at >= ? AND created_at < ?", []interface{}{models.SenderAI}},
		{&r.AgentReplies, &models.Message{}, "sender = ? AND created_at >= ? AND created_at < ?", []interface{}{models.SenderAgent}},
		{&r.AIClosed, &models.Conversation{}, "status = ? AND updated_at >= ? AND updated_at < ?", []interface{}{models.StatusAIClosed}},
		{&r.HumanHandled, &models.Conversation{}, "handled_by = ? AND last_message_at >= ? AND last_message_at < ?", []interface{}{models.HandledByHuman}},
		{&r.Inquiries, &models.Inquiry{}, "created_at >= ? AND created_at < ?", nil},
	}
	for _, c := range counts {
		var n int64
		args := append(append([]interface{}{}, c.args...), since, until)
		if err := db.Model(c.model).Where(c.where, args...).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("digest: count: %w", err)
		}
		*c.dst = int(n)
	}

	// Averaged in Go for portability across SQLite (tests) and MySQL/Postgres.
	var ratings []int
	if err := db.Model(&models.Conversation{}).
		Where("rating IS NOT NULL AND rated_at >= ? AND rated_at < ?", since, until).
		Pluck("rating", &ratings).Error; err != nil {
		return nil, fmt.Errorf("digest: ratings: %w", err)
	}
	r.Ratings = len(ratings)
	if len(ratings) > 0 {
		sum := 0
		for _, v := range ratings {
			sum += v
		}
		r.AvgRating = float64(sum) / float64(len(ratings))
	}
	return r, nil
}

// Format renders a report as a notification.
func Format(r *Report) notify.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new chats, %d visitor messages\n", r.NewConversations, r.VisitorMessages)
	fmt.Fprintf(&b, "Replies: %d AI, %d agent\n", r.AIReplies, r.AgentReplies)
	fmt.Fprintf(&b, "Quotes ready (AI closed): %d\n", r.AIClosed)
	fmt.Fprintf(&b, "Handled by a human: %d\n", r.HumanHandled)
	if r.Ratings > 0 {
		fmt.Fprintf(&b, "Ratings: %d (avg %.1f)\n", r.Ratings, r.AvgRating)
	}
	fmt.Fprintf(&b, "Inquiries: %d", r.Inquiries)

	return notify.Event{
		Kind:     notify.KindDigest,
		Title:    fmt.Sprintf("Chat digest %s", r.PeriodEnd.Format("Jan 2")),
		Body:     b.String(),
		Severity: "info",
	}
}

// Sender builds and delivers digests.
type Sender struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

// NewSender creates a Sender. now defaults to time.Now.
func NewSender(db *gorm.DB, notifier notify.Notifier, now func() time.Time) *Sender {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Sender{db: db, notifier: notifier, now: now}
}

// Send delivers the digest for the last Period. A period with no activity
// sends nothing and returns false.
func (s *Sender) Send(ctx context.Context) (bool, error) {
	until := s.now()
	report, err := Build(ctx, s.db, until.Add(-Period), until)
	if err != nil {
		return false, err
	}
	if report.Empty() {
		return false, nil
	}
	if err := s.notifier.Notify(ctx, Format(report)); err != nil {
		return false, fmt.Errorf("digest: send: %w", err)
	}
	return true, nil
}

// fire sends one digest and logs the result.
func (s *Sender) fire(ctx context.Context) {
	sent, err := s.Send(ctx)
	if err != nil {
		log.Printf("digest: %v", err)
		return
	}
	if !sent {
		log.Printf("digest: no activity, skipped")
	}
}
