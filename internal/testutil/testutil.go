package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// UserOption adjusts a fixture user before it is stored
type UserOption func(*models.User)

// Admin marks the fixture user as a site admin
func Admin(u *models.User) { u.Admin = true }

// Moderator marks the fixture user as a site moderator
func Moderator(u *models.User) { u.Moderator = true }

// Anonymous marks the fixture user as an anonymous account
func Anonymous(u *models.User) { u.Anonymous = true }

// TrustLevel sets the fixture user's trust level
func TrustLevel(level int) UserOption {
	return func(u *models.User) { u.TrustLevel = level }
}

// CategoryModerator makes the fixture user a moderator of one category
func CategoryModerator(categoryID int64) UserOption {
	return func(u *models.User) {
		u.Moderator = true
		u.ModeratorCategoryID = &categoryID
	}
}

// CreateUser stores a trust level 1 user and returns it with its id set
func CreateUser(t *testing.T, repo repository.UserRepository, username string, opts ...UserOption) *models.User {
	t.Helper()

	u := models.User{Username: username, Name: strings.ToUpper(username[:1]) + username[1:], TrustLevel: 1}
	for _, opt := range opts {
		opt(&u)
	}

	id, err := repo.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	u.ID = id
	return &u
}

// CreateCategory stores a category and returns its id
func CreateCategory(t *testing.T, repo repository.CategoryRepository, name string, forElections bool) int64 {
	t.Helper()

	id, err := repo.CreateCategory(context.Background(), models.Category{
		Name:         name,
		Slug:         strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		ForElections: forElections,
	})
	if err != nil {
		t.Fatalf("failed to create category %s: %v", name, err)
	}
	return id
}
