// Package presence infers "is typing" from heartbeat timestamps.
//
// A heartbeat stamps the current time for one side of a conversation. The
// side counts as typing while the stamp is younger than the window. There is
// no explicit "stopped typing" signal; a qualifying send clears the stamp.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is how long a heartbeat keeps a party marked as typing.
const DefaultWindow = 4 * time.Second

// Roles that can send typing heartbeats.
const (
	RoleVisitor = "visitor"
	RoleAgent   = "agent"
)

var (
	// ErrInvalidRole is returned for roles other than visitor or agent.
	ErrInvalidRole = errors.New("presence: role must be visitor or agent")
	// ErrNoConversation is returned when the conversation does not exist.
	ErrNoConversation = errors.New("presence: conversation not found")
)

// Tracker records and queries typing heartbeats.
type Tracker interface {
	Touch(ctx context.Context, conversationID uint, role string) error
	IsTyping(ctx context.Context, conversationID uint, role string) (bool, error)
	Clear(ctx context.Context, conversationID uint, role string) error
}

// Within reports whether stamp is still inside the typing window at now.
func Within(now, stamp time.Time, window time.Duration) bool {
	return now.Sub(stamp) < window
}

// Other returns the opposite role: the party a caller wants to know about.
func Other(role string) (string, error) {
	switch role {
	case RoleVisitor:
		return RoleAgent, nil
	case RoleAgent:
		return RoleVisitor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

func checkRole(role string) error {
	if role != RoleVisitor && role != RoleAgent {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}
