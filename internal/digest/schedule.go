package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("digest: parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Scheduler sends a digest every time its cron schedule fires.
type Scheduler struct {
	sender *Sender
	sched  cron.Schedule
}

// NewScheduler creates a Scheduler for expr.
func NewScheduler(sender *Sender, expr string) (*Scheduler, error) {
	if sender == nil {
		return nil, fmt.Errorf("digest: sender is required")
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{sender: sender, sched: sched}, nil
}

// Next returns the duration until the next fire time after now.
func (s *Scheduler) Next(now time.Time) time.Duration {
	d := s.sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run blocks until ctx is cancelled, sending a digest on every fire.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.Next(s.sender.now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.sender.fire(ctx)
			timer.Reset(s.Next(s.sender.now()))
		}
	}
}
