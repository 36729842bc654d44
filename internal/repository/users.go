package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/abrezinsky/forumelections/internal/models"
)

const userColumns = `id, username, name, avatar_template, trust_level, admin, moderator, anonymous, moderator_category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*models.User, error) {
	var (
		u             models.User
		name, avatar  sql.NullString
		modCategoryID sql.NullInt64
	)
	if err := s.Scan(&u.ID, &u.Username, &name, &avatar, &u.TrustLevel, &u.Admin, &u.Moderator, &u.Anonymous, &modCategoryID); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.AvatarTemplate = avatar.String
	if modCategoryID.Valid {
		id := modCategoryID.Int64
		u.ModeratorCategoryID = &id
	}
	return &u, nil
}

// CreateUser inserts a user and returns its id
func (r *Repository) CreateUser(ctx context.Context, u models.User) (int64, error) {
	var modCategoryID sql.NullInt64
	if u.ModeratorCategoryID != nil {
		modCategoryID = sql.NullInt64{Int64: *u.ModeratorCategoryID, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, name, avatar_template, trust_level, admin, moderator, anonymous, moderator_category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Name, u.AvatarTemplate, u.TrustLevel, u.Admin, u.Moderator, u.Anonymous, modCategoryID)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByUsername retrieves a user by username, case-insensitively
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUsers returns the users with the given ids in the order of ids.
// Unknown ids are skipped.
func (r *Repository) GetUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]models.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = *u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// ListModerators returns every user with the moderator flag
func (r *Repository) ListModerators(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE moderator = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
