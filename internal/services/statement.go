package services

import (
	"context"
	"errors"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/markup"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// ExcerptLength is the number of characters kept from a nomination statement
const ExcerptLength = 100

// StatementService maintains the nomination statements of an election.
// It changes the election in memory; callers persist it.
type StatementService struct {
	log logger.Logger
}

// NewStatementService creates a new StatementService
func NewStatementService(log logger.Logger) *StatementService {
	return &StatementService{log: log}
}

// Upsert records post as its author's statement. An entry for the same post
// gets a fresh excerpt and any other entry of the author is replaced.
func (s *StatementService) Upsert(e *models.Election, post *models.Post) (models.NominationStatement, error) {
	excerpt, err := markup.Excerpt(post.Cooked, ExcerptLength)
	if err != nil {
		return models.NominationStatement{}, err
	}

	st := models.NominationStatement{PostID: post.ID, UserID: post.UserID, Excerpt: excerpt}

	kept := e.Statements[:0:0]
	replaced := false
	for _, existing := range e.Statements {
		if existing.PostID == post.ID || existing.UserID == post.UserID {
			if !replaced {
				kept = append(kept, st)
				replaced = true
			}
			continue
		}
		kept = append(kept, existing)
	}
	if !replaced {
		kept = append(kept, st)
	}
	e.Statements = kept
	return st, nil
}

// Remove drops the statements of the given users and returns them
func (s *StatementService) Remove(e *models.Election, userIDs []int64) []models.NominationStatement {
	drop := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		drop[id] = true
	}

	var removed []models.NominationStatement
	kept := make([]models.NominationStatement, 0, len(e.Statements))
	for _, st := range e.Statements {
		if drop[st.UserID] {
			removed = append(removed, st)
			continue
		}
		kept = append(kept, st)
	}
	e.Statements = kept
	return removed
}

// RemovePost drops the statement backed by postID and reports whether there
// was one
func (s *StatementService) RemovePost(e *models.Election, postID int64) bool {
	for i, st := range e.Statements {
		if st.PostID == postID {
			e.Statements = append(e.Statements[:i:i], e.Statements[i+1:]...)
			return true
		}
	}
	return false
}

// Retrieve finds each user's most recent live statement post in the topic.
// Users without one are skipped.
func (s *StatementService) Retrieve(ctx context.Context, repo repository.PostRepository, topicID int64, userIDs []int64) ([]models.Post, error) {
	var posts []models.Post
	for _, id := range userIDs {
		post, err := repo.LatestStatementPost(ctx, topicID, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}
