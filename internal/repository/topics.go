package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/abrezinsky/forumelections/internal/models"
)

// CreateTopic inserts a topic and returns its id
func (r *Repository) CreateTopic(ctx context.Context, t models.Topic) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO topics (category_id, title, slug, user_id, subtype, closed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.CategoryID, t.Title, t.Slug, t.UserID, t.Subtype, t.Closed)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetTopic retrieves a topic by id
func (r *Repository) GetTopic(ctx context.Context, id int64) (*models.Topic, error) {
	var (
		t       models.Topic
		subtype sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, title, slug, user_id, subtype, closed, created_at
		FROM topics WHERE id = ?
	`, id).Scan(&t.ID, &t.CategoryID, &t.Title, &t.Slug, &t.UserID, &subtype, &t.Closed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Subtype = subtype.String
	return &t, nil
}

// UpdateTopicTitle changes a topic's title and slug
func (r *Repository) UpdateTopicTitle(ctx context.Context, id int64, title, slug string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE topics SET title = ?, slug = ? WHERE id = ?`, title, slug, id)
	return err
}

// SetTopicClosed opens or closes a topic
func (r *Repository) SetTopicClosed(ctx context.Context, id int64, closed bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE topics SET closed = ? WHERE id = ?`, closed, id)
	return err
}

// GetElection loads a topic with its election custom fields.
// Returns ErrNotFound for a missing topic and ErrNotElection for a topic
// without election state.
func (r *Repository) GetElection(ctx context.Context, topicID int64) (*models.Election, error) {
	topic, err := r.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	fields, err := r.customFields(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return decodeElection(topic, fields)
}

func (r *Repository) customFields(ctx context.Context, topicID int64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, value FROM topic_custom_fields WHERE topic_id = ?`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		fields[name] = value
	}
	return fields, rows.Err()
}

// SaveElection writes every election custom field of the topic
func (r *Repository) SaveElection(ctx context.Context, e *models.Election) error {
	fields, err := encodeElection(e)
	if err != nil {
		return err
	}

	// Sorted so writes happen in a deterministic order
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO topic_custom_fields (topic_id, name, value) VALUES (?, ?, ?)
			ON CONFLICT(topic_id, name) DO UPDATE SET value = excluded.value
		`, e.TopicID, name, fields[name])
		if err != nil {
			return err
		}
	}
	return nil
}

// ListElections returns the elections of a category whose status is in
// statuses, ordered by topic id.
func (r *Repository) ListElections(ctx context.Context, categoryID int64, statuses []models.ElectionStatus) ([]models.Election, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := []any{categoryID, FieldStatus}
	for _, s := range statuses {
		args = append(args, int(s))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id FROM topics t
		JOIN topic_custom_fields f ON f.topic_id = t.id
		WHERE t.category_id = ? AND f.name = ? AND CAST(f.value AS INTEGER) IN (`+placeholders(len(statuses))+`)
		ORDER BY t.id
	`, args...)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	elections := make([]models.Election, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetElection(ctx, id)
		if err != nil {
			return nil, err
		}
		elections = append(elections, *e)
	}
	return elections, nil
}
