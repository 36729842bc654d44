package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abrezinsky/forumelections/internal/models"
)

// CreateCategory inserts a category and returns its id
func (r *Repository) CreateCategory(ctx context.Context, c models.Category) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug, for_elections) VALUES (?, ?, ?)
	`, c.Name, c.Slug, c.ForElections)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetCategory retrieves a category by id
func (r *Repository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, for_elections FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Slug, &c.ForElections)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetElectionList returns the category's election summary list
func (r *Repository) GetElectionList(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT election_list FROM categories WHERE id = ?`, categoryID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !raw.Valid || raw.String == "" {
		return []models.ElectionListEntry{}, nil
	}

	var list []models.ElectionListEntry
	if err := json.Unmarshal([]byte(raw.String), &list); err != nil {
		return nil, fmt.Errorf("decode election list for category %d: %w", categoryID, err)
	}
	return list, nil
}

// SaveElectionList replaces the category's election summary list
func (r *Repository) SaveElectionList(ctx context.Context, categoryID int64, list []models.ElectionListEntry) error {
	if list == nil {
		list = []models.ElectionListEntry{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `UPDATE categories SET election_list = ? WHERE id = ?`, string(data), categoryID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
