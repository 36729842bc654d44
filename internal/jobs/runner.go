// Package jobs runs the deferred election work stored in the scheduled_jobs
// table.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
	"github.com/abrezinsky/forumelections/internal/services"
)

// DefaultBatchSize is how many due jobs one claim takes
const DefaultBatchSize = 50

// Handler performs one job
type Handler func(ctx context.Context, job models.Job) error

// Runner claims due jobs and dispatches them by kind
type Runner struct {
	log      logger.Logger
	repo     repository.JobRepository
	interval time.Duration
	batch    int
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[models.JobKind]Handler
}

// NewRunner creates a Runner that checks for due jobs every interval
func NewRunner(log logger.Logger, repo repository.JobRepository, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		log:      log,
		repo:     repo,
		interval: interval,
		batch:    DefaultBatchSize,
		now:      time.Now,
		handlers: make(map[models.JobKind]Handler),
	}
}

// SetClock replaces the time source used to decide which jobs are due
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Register sets the handler for a job kind, replacing any earlier one
func (r *Runner) Register(kind models.JobKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// RegisterElectionHandlers wires the poll open, poll close and category list
// removal jobs
func (r *Runner) RegisterElectionHandlers(elections services.ElectionServicer, lists services.CategoryListServicer) {
	pollJob := func(ctx context.Context, job models.Job) error {
		side, _ := services.PollSideForJob(job.Kind)
		return elections.RunPollJob(ctx, side, job.TopicID)
	}
	r.Register(models.JobOpenPoll, pollJob)
	r.Register(models.JobClosePoll, pollJob)
	r.Register(models.JobRemoveFromCategoryList, func(ctx context.Context, job models.Job) error {
		return lists.Remove(ctx, job.CategoryID, job.TopicID)
	})
}

// Start runs due jobs on every tick until ctx is cancelled
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Job runner started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Job runner stopped")
			return
		case <-ticker.C:
			if _, err := r.RunDue(ctx); err != nil {
				r.log.Error("Failed to claim due jobs", "error", err)
			}
		}
	}
}

// RunDue claims and runs every job whose run time has passed and returns how
// many ran. A claimed job is gone from the table whether or not its handler
// succeeds; handler failures are logged.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	ran := 0
	for {
		due, err := r.repo.ClaimDueJobs(ctx, r.now(), r.batch)
		if err != nil {
			return ran, err
		}
		for _, job := range due {
			r.run(ctx, job)
			ran++
		}
		if len(due) < r.batch || ctx.Err() != nil {
			return ran, nil
		}
	}
}

func (r *Runner) run(ctx context.Context, job models.Job) {
	r.mu.RLock()
	h, ok := r.handlers[job.Kind]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("No handler for job", "kind", job.Kind, "job_id", job.ID)
		return
	}

	start := time.Now()
	if err := h(ctx, job); err != nil {
		r.log.Warn("Job failed", "kind", job.Kind, "job_id", job.ID, "topic_id", job.TopicID, "error", err)
		return
	}
	r.log.Debug("Job finished", "kind", job.Kind, "job_id", job.ID, "topic_id", job.TopicID, "duration", time.Since(start))
}
