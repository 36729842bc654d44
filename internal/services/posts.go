package services

import (
	"context"
	"errors"
	"strings"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/markup"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// pollMarker starts a poll block in post raw
const pollMarker = "[poll"

// NewPost is a reply to a topic
type NewPost struct {
	TopicID             int64  `json:"topic_id"`
	Raw                 string `json:"raw"`
	NominationStatement bool   `json:"nomination_statement"`
}

// PostEdit changes a post's raw. A nil NominationStatement keeps the flag.
type PostEdit struct {
	Raw                 string `json:"raw"`
	NominationStatement *bool  `json:"nomination_statement,omitempty"`
}

// PostService writes replies and keeps nomination statements in step with
// the posts that back them
type PostService struct {
	log         logger.Logger
	repo        repository.FullRepository
	statements  *StatementService
	posts       *ElectionPostService
	broadcaster Broadcaster
}

// NewPostService creates a new PostService
func NewPostService(log logger.Logger, repo repository.FullRepository, statements *StatementService, posts *ElectionPostService) *PostService {
	return &PostService{log: log, repo: repo, statements: statements, posts: posts}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *PostService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create adds a reply. A statement by a current nominee is recorded on the
// election and the election post is rebuilt.
func (s *PostService) Create(ctx context.Context, user *models.User, req NewPost) (*models.Post, error) {
	if user == nil || user.Anonymous {
		return nil, ErrNotAuthorized
	}

	var created *models.Post
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		topic, err := tx.GetTopic(ctx, req.TopicID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTopicInaccessible
		}
		if err != nil {
			return err
		}
		if topic.Closed {
			return ErrTopicInaccessible
		}

		e, err := electionOf(ctx, tx, topic.ID)
		if err != nil {
			return err
		}
		if e != nil && strings.Contains(req.Raw, pollMarker) {
			return ErrSeparatePoll
		}

		id, err := tx.CreatePost(ctx, models.Post{
			TopicID:             topic.ID,
			UserID:              user.ID,
			Raw:                 req.Raw,
			Cooked:              markup.Cook(req.Raw),
			NominationStatement: req.NominationStatement,
		})
		if err != nil {
			return err
		}
		if created, err = tx.GetPost(ctx, id); err != nil {
			return err
		}

		if e != nil && created.NominationStatement && e.IsNominee(user.ID) {
			return s.upsert(ctx, tx, fx, e, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.refresh(created.TopicID)
	fx.run(ctx)
	return created, nil
}

// Edit replaces a reply's raw. Only the author or staff may edit and the
// first post of an election belongs to the election itself.
func (s *PostService) Edit(ctx context.Context, user *models.User, postID int64, req PostEdit) (*models.Post, error) {
	var edited *models.Post
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		post, e, err := s.load(ctx, tx, user, postID)
		if err != nil {
			return err
		}
		if e != nil && strings.Contains(req.Raw, pollMarker) {
			return ErrSeparatePoll
		}

		if err := tx.UpdatePost(ctx, post.ID, req.Raw, markup.Cook(req.Raw), false); err != nil {
			return err
		}
		if req.NominationStatement != nil && *req.NominationStatement != post.NominationStatement {
			if err := tx.SetNominationStatement(ctx, post.ID, *req.NominationStatement); err != nil {
				return err
			}
		}
		if edited, err = tx.GetPost(ctx, post.ID); err != nil {
			return err
		}

		if e == nil {
			return nil
		}
		switch {
		case edited.NominationStatement && e.IsNominee(edited.UserID):
			return s.upsert(ctx, tx, fx, e, edited)
		case !edited.NominationStatement:
			return s.drop(ctx, tx, e, edited)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.refresh(edited.TopicID)
	fx.run(ctx)
	return edited, nil
}

// Destroy soft-deletes a reply and drops the statement it backed
func (s *PostService) Destroy(ctx context.Context, user *models.User, postID int64) error {
	var topicID int64
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		post, e, err := s.load(ctx, tx, user, postID)
		if err != nil {
			return err
		}
		topicID = post.TopicID

		if err := tx.SetPostDeleted(ctx, post.ID, true); err != nil {
			return err
		}
		if e != nil && post.NominationStatement {
			return s.drop(ctx, tx, e, post)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fx.refresh(topicID)
	fx.run(ctx)
	return nil
}

// Recover restores a soft-deleted reply. A recovered statement of a current
// nominee is recorded again.
func (s *PostService) Recover(ctx context.Context, user *models.User, postID int64) (*models.Post, error) {
	var recovered *models.Post
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		post, e, err := s.load(ctx, tx, user, postID)
		if err != nil {
			return err
		}
		if err := tx.SetPostDeleted(ctx, post.ID, false); err != nil {
			return err
		}
		recovered = post
		recovered.DeletedAt = nil

		if e != nil && post.NominationStatement && e.IsNominee(post.UserID) {
			return s.upsert(ctx, tx, fx, e, recovered)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.refresh(recovered.TopicID)
	fx.run(ctx)
	return recovered, nil
}

// load returns a reply the user may change and the election of its topic,
// nil when the topic is not an election
func (s *PostService) load(ctx context.Context, tx repository.FullRepository, user *models.User, postID int64) (*models.Post, *models.Election, error) {
	if user == nil {
		return nil, nil, ErrNotAuthorized
	}
	post, err := tx.GetPost(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrPostNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if post.UserID != user.ID && !user.Staff() {
		return nil, nil, ErrNotAuthorized
	}

	e, err := electionOf(ctx, tx, post.TopicID)
	if err != nil {
		return nil, nil, err
	}
	if e != nil && post.PostNumber == 1 {
		return nil, nil, ErrNotAuthorized
	}
	return post, e, nil
}

func (s *PostService) upsert(ctx context.Context, tx repository.FullRepository, fx *effects, e *models.Election, post *models.Post) error {
	if _, err := s.statements.Upsert(e, post); err != nil {
		return err
	}
	s.log.Debug("Nomination statement recorded", "topic_id", e.TopicID, "post_id", post.ID, "user_id", post.UserID)
	return s.save(ctx, tx, e)
}

// drop removes the statement backed by post. The author's latest remaining
// statement, if any, takes its place.
func (s *PostService) drop(ctx context.Context, tx repository.FullRepository, e *models.Election, post *models.Post) error {
	if !s.statements.RemovePost(e, post.ID) {
		return nil
	}
	if e.IsNominee(post.UserID) {
		earlier, err := s.statements.Retrieve(ctx, tx, e.TopicID, []int64{post.UserID})
		if err != nil {
			return err
		}
		for i := range earlier {
			if _, err := s.statements.Upsert(e, &earlier[i]); err != nil {
				return err
			}
		}
	}
	return s.save(ctx, tx, e)
}

func (s *PostService) save(ctx context.Context, tx repository.FullRepository, e *models.Election) error {
	if err := tx.SaveElection(ctx, e); err != nil {
		return err
	}
	_, err := s.posts.Rebuild(ctx, tx, e)
	return err
}

// electionOf returns the topic's election, or nil for a plain topic
func electionOf(ctx context.Context, repo repository.TopicRepository, topicID int64) (*models.Election, error) {
	e, err := repo.GetElection(ctx, topicID)
	if errors.Is(err, repository.ErrNotElection) {
		return nil, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTopicInaccessible
	}
	return e, err
}
