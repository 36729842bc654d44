package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
)

// EnqueueJob persists a scheduled job
func (r *Repository) EnqueueJob(ctx context.Context, job models.Job) error {
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, kind, topic_id, category_id, run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Kind), job.TopicID, job.CategoryID, job.RunAt.Unix(), createdAt.Unix())
	return err
}

// CancelJobs removes pending jobs of a kind for one topic and reports how
// many were removed
func (r *Repository) CancelJobs(ctx context.Context, kind models.JobKind, topicID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE kind = ? AND topic_id = ?`, string(kind), topicID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListJobs returns a topic's pending jobs ordered by run time
func (r *Repository) ListJobs(ctx context.Context, topicID int64) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, topic_id, category_id, run_at, created_at
		FROM scheduled_jobs WHERE topic_id = ?
		ORDER BY run_at, id
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimDueJobs removes and returns up to limit jobs whose run time has
// passed. A claimed job is not returned again.
func (r *Repository) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM scheduled_jobs
		WHERE id IN (
			SELECT id FROM scheduled_jobs WHERE run_at <= ? ORDER BY run_at, id LIMIT ?
		)
		RETURNING id, kind, topic_id, category_id, run_at, created_at
	`, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(s rowScanner) (models.Job, error) {
	var (
		job              models.Job
		kind             string
		runAt, createdAt int64
	)
	if err := s.Scan(&job.ID, &kind, &job.TopicID, &job.CategoryID, &runAt, &createdAt); err != nil {
		return job, err
	}
	job.Kind = models.JobKind(kind)
	job.RunAt = time.Unix(runAt, 0).UTC()
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	return job, nil
}
