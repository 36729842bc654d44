package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
	"github.com/abrezinsky/forumelections/internal/services"
)

// SeedCategory is the elections category created by Seed
const SeedCategory = "Elections"

var seedUsers = []models.User{
	{Username: services.SystemUsername, Name: "System", TrustLevel: 4, Admin: true},
	{Username: "admin", Name: "Admin", TrustLevel: 4, Admin: true},
	{Username: "moderator", Name: "Moderator", TrustLevel: 4, Moderator: true},
	{Username: "alice", Name: "Alice", TrustLevel: 2},
	{Username: "bob", Name: "Bob", TrustLevel: 2},
	{Username: "carol", Name: "Carol", TrustLevel: 1},
	{Username: "newcomer", Name: "Newcomer", TrustLevel: 0},
}

// Seed creates the system user, the demo accounts and a new elections
// category, returning the category id. Accounts that already exist are kept.
func Seed(ctx context.Context, log logger.Logger, repo repository.FullRepository) (int64, error) {
	created := 0
	for _, u := range seedUsers {
		_, err := repo.GetUserByUsername(ctx, u.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("look up %s: %w", u.Username, err)
		}
		if _, err := repo.CreateUser(ctx, u); err != nil {
			return 0, fmt.Errorf("create %s: %w", u.Username, err)
		}
		created++
	}

	categoryID, err := repo.CreateCategory(ctx, models.Category{
		Name:         SeedCategory,
		Slug:         services.Slugify(SeedCategory),
		ForElections: true,
	})
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}

	log.Info("Seed data created", "users", created, "category_id", categoryID)
	return categoryID, nil
}
