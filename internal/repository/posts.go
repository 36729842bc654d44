package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
)

const postColumns = `id, topic_id, post_number, user_id, raw, cooked, nomination_statement, version, poll_status, poll_voters, created_at, deleted_at`

func scanPost(s rowScanner) (*models.Post, error) {
	var (
		p          models.Post
		pollStatus sql.NullString
		deletedAt  sql.NullTime
	)
	err := s.Scan(&p.ID, &p.TopicID, &p.PostNumber, &p.UserID, &p.Raw, &p.Cooked,
		&p.NominationStatement, &p.Version, &pollStatus, &p.PollVoters, &p.CreatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	p.PollStatus = pollStatus.String
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return &p, nil
}

// CreatePost appends a post to its topic and returns the new id
func (r *Repository) CreatePost(ctx context.Context, p models.Post) (int64, error) {
	var pollStatus sql.NullString
	if p.PollStatus != "" {
		pollStatus = sql.NullString{String: p.PollStatus, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (topic_id, post_number, user_id, raw, cooked, nomination_statement, poll_status)
		VALUES (?, (SELECT COALESCE(MAX(post_number), 0) + 1 FROM posts WHERE topic_id = ?), ?, ?, ?, ?, ?)
	`, p.TopicID, p.TopicID, p.UserID, p.Raw, p.Cooked, p.NominationStatement, pollStatus)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetPost retrieves a post by id, including soft-deleted posts
func (r *Repository) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetFirstPost retrieves post number 1 of a topic
func (r *Repository) GetFirstPost(ctx context.Context, topicID int64) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE topic_id = ? AND post_number = 1`, topicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdatePost replaces a post's content. Unless skipRevision is set the
// previous raw is kept as a revision and the version is bumped.
func (r *Repository) UpdatePost(ctx context.Context, id int64, raw, cooked string, skipRevision bool) error {
	now := time.Now().UTC()

	if skipRevision {
		result, err := r.db.ExecContext(ctx, `
			UPDATE posts SET raw = ?, cooked = ?, updated_at = ? WHERE id = ?
		`, raw, cooked, now, id)
		if err != nil {
			return err
		}
		return requireRow(result)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO post_revisions (post_id, number, raw)
		SELECT id, version, raw FROM posts WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE posts SET raw = ?, cooked = ?, version = version + 1, updated_at = ? WHERE id = ?
	`, raw, cooked, now, id)
	return err
}

// SetPostDeleted soft-deletes or recovers a post
func (r *Repository) SetPostDeleted(ctx context.Context, id int64, deleted bool) error {
	var deletedAt any
	if deleted {
		deletedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `UPDATE posts SET deleted_at = ? WHERE id = ?`, deletedAt, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetNominationStatement flags or unflags a post as a nomination statement
func (r *Repository) SetNominationStatement(ctx context.Context, id int64, statement bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE posts SET nomination_statement = ? WHERE id = ?`, statement, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// LatestStatementPost returns the user's most recent live reply in the topic
// flagged as a nomination statement
func (r *Repository) LatestStatementPost(ctx context.Context, topicID, userID int64) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE topic_id = ? AND user_id = ? AND post_number > 1
			AND nomination_statement = 1 AND deleted_at IS NULL
		ORDER BY post_number DESC
		LIMIT 1
	`, topicID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// SetPollState records the poll status and voter count of a post
func (r *Repository) SetPollState(ctx context.Context, postID int64, status string, voters int) error {
	var pollStatus sql.NullString
	if status != "" {
		pollStatus = sql.NullString{String: status, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, `UPDATE posts SET poll_status = ?, poll_voters = ? WHERE id = ?`, pollStatus, voters, postID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CountRevisions returns how many revisions a post has
func (r *Repository) CountRevisions(ctx context.Context, postID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_revisions WHERE post_id = ?`, postID).Scan(&count)
	return count, err
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
