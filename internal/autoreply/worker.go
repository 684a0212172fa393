package autoreply

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/packaginghippo/hippo/internal/models"
	"gorm.io/gorm"
)

const (
	defaultWorkers      = 2
	defaultPollInterval = 2 * time.Second
	// maxClaimAttempts bounds how often Claim retries after losing a race.
	maxClaimAttempts = 5
)

// Worker drains the reply job queue.
type Worker struct {
	db       *gorm.DB
	gen      *Generator
	wake     <-chan struct{}
	workers  int
	interval time.Duration
	now      func() time.Time
}

// WorkerOpts holds parameters for creating a Worker.
type WorkerOpts struct {
	DB           *gorm.DB
	Generator    *Generator
	Wake         <-chan struct{} // optional; usually Trigger.Wake()
	Workers      int             // concurrent generators, default 2
	PollInterval time.Duration   // default 2s
	Now          func() time.Time
}

// NewWorker creates a Worker.
func NewWorker(opts WorkerOpts) (*Worker, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("autoreply: db is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("autoreply: generator is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		db:       opts.DB,
		gen:      opts.Generator,
		wake:     opts.Wake,
		workers:  opts.Workers,
		interval: opts.PollInterval,
		now:      opts.Now,
	}, nil
}

// Run re-queues jobs interrupted by a previous shutdown and then processes
// jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	n, err := w.Requeue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("autoreply: re-queued %d interrupted reply jobs", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			log.Printf("autoreply: drain: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// Requeue moves jobs stuck in running back to pending.
func (w *Worker) Requeue(ctx context.Context) (int64, error) {
	result := w.db.WithContext(ctx).Model(&models.ReplyJob{}).
		Where("status = ?", models.JobRunning).
		Updates(map[string]interface{}{
			"status":     models.JobPending,
			"started_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("autoreply: requeue running jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Drain processes pending jobs until none are left and returns how many it
// handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for ctx.Err() == nil {
		job, err := w.Claim(ctx)
		if err != nil {
			return n, err
		}
		if job == nil {
			return n, nil
		}
		w.Process(ctx, job)
		n++
	}
	return n, nil
}

// Claim moves the oldest pending job to running. It returns nil when the
// queue is empty.
func (w *Worker) Claim(ctx context.Context) (*models.ReplyJob, error) {
	db := w.db.WithContext(ctx)
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var job models.ReplyJob
		if err := db.Where("status = ?", models.JobPending).Order("id ASC").Limit(1).Find(&job).Error; err != nil {
			return nil, fmt.Errorf("autoreply: find pending job: %w", err)
		}
		if job.ID == 0 {
			return nil, nil
		}

		now := w.now()
		result := db.Model(&models.ReplyJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobPending).
			Updates(map[string]interface{}{
				"status":     models.JobRunning,
				"started_at": now,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("autoreply: claim job %d: %w", job.ID, result.Error)
		}
		if result.RowsAffected == 1 {
			job.Status = models.JobRunning
			job.StartedAt = &now
			return &job, nil
		}
	}
	return nil, nil
}

// Process runs the generator for a claimed job and records the outcome.
// A failed job stays failed.
func (w *Worker) Process(ctx context.Context, job *models.ReplyJob) {
	status := models.JobDone
	var errText string

	res, err := w.gen.GenerateFor(ctx, job.ConversationID, job.MessageID)
	if err != nil && ctx.Err() != nil {
		// Shutting down; leave it for the next start to pick up.
		if _, rqErr := w.Requeue(context.WithoutCancel(ctx)); rqErr != nil {
			log.Printf("autoreply: requeue job %d: %v", job.ID, rqErr)
		}
		return
	}
	switch {
	case err != nil:
		status = models.JobFailed
		errText = err.Error()
		log.Printf("autoreply: job %d for conversation %d failed: %v", job.ID, job.ConversationID, err)
	case res.Skipped:
		status = models.JobSkipped
		errText = res.Reason
	}

	now := w.now()
	if err := w.db.WithContext(context.WithoutCancel(ctx)).Model(&models.ReplyJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errText,
			"finished_at": now,
		}).Error; err != nil {
		log.Printf("autoreply: finish job %d: %v", job.ID, err)
	}
}
