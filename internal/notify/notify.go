// Package notify posts sales-team alerts (quote-ready chats, new inquiries,
// daily digests) to Slack and Discord.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/packaginghippo/hippo/internal/config"
)

// Event kinds.
const (
	KindQuoteReady = "quote_ready"
	KindInquiry    = "inquiry_created"
	KindDigest     = "digest"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is one alert for the sales team.
type Event struct {
	Kind     string
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Fields   []Field
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Color returns the sidebar color for the event's severity.
func (e Event) Color() string {
	switch e.Severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify delivers ev to each notifier in turn.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds a notifier for every configured channel. With none configured
// it returns Nop.
func New(cfg config.NotifyConfig) (Notifier, error) {
	var out Multi
	if cfg.Slack.Enabled() {
		s, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Discord.Enabled() {
		d, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	switch len(out) {
	case 0:
		return Nop{}, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

// Mock records events for tests.
type Mock struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned from every Notify when set
}

// Notify records ev.
func (m *Mock) Notify(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of all recorded events.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events of kind were recorded.
func (m *Mock) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (ev Event) fallbackText() string {
	if ev.Body == "" {
		return ev.Title
	}
	return fmt.Sprintf("%s\n%s", ev.Title, ev.Body)
}
