package chat

import (
	"math/rand/v2"
	"slices"
)

// Roster is the fixed list of display names shown to visitors as their
// agent. It is presentation only: picking a name assigns and notifies nobody.
type Roster struct {
	names []string
	intn  func(n int) int
}

// NewRoster creates a Roster over names. An empty list yields an empty
// display name on every pick.
func NewRoster(names []string) *Roster {
	return &Roster{names: slices.Clone(names), intn: rand.IntN}
}

// Pick returns a pseudo-randomly chosen display name.
func (r *Roster) Pick() string {
	if r == nil || len(r.names) == 0 {
		return ""
	}
	return r.names[r.intn(len(r.names))]
}

// Contains reports whether name is on the roster.
func (r *Roster) Contains(name string) bool {
	return r != nil && slices.Contains(r.names, name)
}
