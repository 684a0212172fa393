package autoreply

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/packaginghippo/hippo/internal/assistant"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/metrics"
	"github.com/packaginghippo/hippo/internal/models"
	"github.com/packaginghippo/hippo/internal/notify"
)

// ErrEmptyReply is returned when the model produced nothing to store.
var ErrEmptyReply = errors.New("autoreply: empty reply")

// Result is the outcome of one Generate call.
type Result struct {
	Skipped bool
	Reason  string
	Message *models.Message
	Closing bool
}

// Generator produces and stores one AI reply.
type Generator struct {
	chat         *chat.Service
	ai           assistant.Completer
	notifier     notify.Notifier
	metrics      *metrics.Metrics
	model        string
	maxTokens    int
	temperature  float64
	historyLimit int
	siteName     string
}

// GeneratorOpts holds parameters for creating a Generator.
type GeneratorOpts struct {
	Chat         *chat.Service
	AI           assistant.Completer
	Notifier     notify.Notifier  // optional
	Metrics      *metrics.Metrics // optional
	Model        string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int // defaults to DefaultHistoryLimit
	SiteName     string
}

// NewGenerator creates a Generator.
func NewGenerator(opts GeneratorOpts) (*Generator, error) {
	if opts.Chat == nil {
		return nil, fmt.Errorf("autoreply: chat service is required")
	}
	if opts.AI == nil {
		return nil, fmt.Errorf("autoreply: completion client is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("autoreply: model is required")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	return &Generator{
		chat:         opts.Chat,
		ai:           opts.AI,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
		historyLimit: opts.HistoryLimit,
		siteName:     opts.SiteName,
	}, nil
}

// Generate drafts and stores a reply to whatever the visitor said last. It
// reports a skip, without calling the model, when the conversation is no
// longer active or a human has taken over. Completion errors are returned
// as-is; nothing is stored and nothing is retried.
func (g *Generator) Generate(ctx context.Context, conversationID uint) (*Result, error) {
	return g.GenerateFor(ctx, conversationID, 0)
}

// GenerateFor is Generate pinned to the visitor message with id messageID.
// It also skips when that message has already been answered or a newer
// message superseded it. A messageID of zero pins nothing.
func (g *Generator) GenerateFor(ctx context.Context, conversationID, messageID uint) (*Result, error) {
	conv, err := g.chat.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != models.StatusActive {
		return g.skip(ReasonNotActive), nil
	}
	if conv.IsHumanHandled() {
		return g.skip(ReasonHumanHandled), nil
	}

	history, err := g.chat.RecentMessages(ctx, conversationID, g.historyLimit)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return g.skip(ReasonNoMessages), nil
	}
	if messageID != 0 {
		last := history[len(history)-1]
		switch {
		case last.Sender != models.SenderVisitor:
			return g.skip(ReasonNotVisitor), nil
		case last.ID != messageID:
			return g.skip(ReasonSuperseded), nil
		}
	}

	resp, err := g.ai.Complete(ctx, assistant.Request{
		Model:       g.model,
		Messages:    BuildMessages(SystemPrompt(conv.AssignedAgent, g.siteName), history),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.metrics.AIReply(metrics.OutcomeFailed)
		return nil, fmt.Errorf("autoreply: complete conversation %d: %w", conversationID, err)
	}

	text, closing := DetectClosing(resp.Content)
	if text == "" {
		g.metrics.AIReply(metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: conversation %d", ErrEmptyReply, conversationID)
	}

	stored, err := g.chat.AppendAIReply(ctx, conversationID, text, closing)
	if errors.Is(err, chat.ErrHumanHandled) {
		return g.skip(ReasonHumanHandled), nil
	}
	if err != nil {
		g.metrics.AIReply(metrics.OutcomeFailed)
		return nil, err
	}

	if closing {
		g.metrics.AIReply(metrics.OutcomeClosing)
		if err := g.notifier.Notify(ctx, quoteReadyEvent(conv, history)); err != nil {
			log.Printf("autoreply: notify quote ready for %d: %v", conversationID, err)
		}
	} else {
		g.metrics.AIReply(metrics.OutcomeReplied)
	}

	return &Result{Message: &stored.Message, Closing: closing}, nil
}

func (g *Generator) skip(reason string) *Result {
	g.metrics.AIReply(metrics.OutcomeSkipped)
	return &Result{Skipped: true, Reason: reason}
}

// quoteReadyEvent summarises what the visitor told the AI so sales can pick
// up the lead without opening the dashboard.
func quoteReadyEvent(conv *models.Conversation, history []models.Message) notify.Event {
	var body string
	for _, m := range history {
		if m.Sender != models.SenderVisitor {
			continue
		}
		if body != "" {
			body += "\n"
		}
		body += "> " + m.Content
	}

	fields := []notify.Field{
		{Name: "Visitor", Value: conv.VisitorName, Short: true},
		{Name: "Conversation", Value: fmt.Sprint(conv.ID), Short: true},
	}
	if conv.VisitorEmail != "" {
		fields = append(fields, notify.Field{Name: "Email", Value: conv.VisitorEmail, Short: true})
	}
	return notify.Event{
		Kind:     notify.KindQuoteReady,
		Title:    fmt.Sprintf("Quote ready: %s", conv.VisitorName),
		Body:     body,
		Severity: "success",
		Fields:   fields,
	}
}
