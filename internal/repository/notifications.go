package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/abrezinsky/forumelections/internal/models"
)

// CreateNotification stores a notification and returns its id
func (r *Repository) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	var data sql.NullString
	if len(n.Data) > 0 {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return 0, err
		}
		data = sql.NullString{String: string(encoded), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, topic_id, type, data) VALUES (?, ?, ?, ?)
	`, n.UserID, n.TopicID, n.Type, data)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListNotifications returns a user's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(topic_id, 0), type, data, read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var (
			n    models.Notification
			data sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.TopicID, &n.Type, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
