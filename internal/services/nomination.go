package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// NominationConfig holds the self nomination settings
type NominationConfig struct {
	MinTrustLevel int
}

// RosterChange describes an accepted change of nominees
type RosterChange struct {
	Added       []int64                      `json:"added"`
	Removed     []int64                      `json:"removed"`
	Restored    []models.NominationStatement `json:"restored"`
	Nominations []int64                      `json:"nominations"`
}

// NominationService manages the nominee roster of elections
type NominationService struct {
	log         logger.Logger
	repo        repository.FullRepository
	cfg         NominationConfig
	statements  *StatementService
	posts       *ElectionPostService
	times       *ElectionTime
	elections   *ElectionService
	broadcaster Broadcaster
}

// NewNominationService creates a new NominationService
func NewNominationService(log logger.Logger, repo repository.FullRepository, cfg NominationConfig, statements *StatementService, posts *ElectionPostService, times *ElectionTime, elections *ElectionService) *NominationService {
	return &NominationService{
		log:        log,
		repo:       repo,
		cfg:        cfg,
		statements: statements,
		posts:      posts,
		times:      times,
		elections:  elections,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *NominationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetRoster replaces the nominees of an election. The order of userIDs is
// kept and repeated ids are dropped.
func (s *NominationService) SetRoster(ctx context.Context, topicID int64, userIDs []int64) (*RosterChange, error) {
	nominations := unique(userIDs)
	return s.mutate(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) (*RosterChange, error) {
		return s.apply(ctx, tx, fx, e, nominations)
	})
}

// SetByUsername resolves usernames and replaces the nominees with them
func (s *NominationService) SetByUsername(ctx context.Context, topicID int64, usernames []string) (*RosterChange, error) {
	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		u, err := s.repo.GetUserByUsername(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &UserNotFoundError{Username: name}
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, u.ID)
	}
	return s.SetRoster(ctx, topicID, ids)
}

// AddSelf nominates the acting user. Nominating twice is not an error.
func (s *NominationService) AddSelf(ctx context.Context, topicID int64, user *models.User) (*RosterChange, error) {
	if user == nil || user.Anonymous {
		return nil, ErrOnlyNamedUserCanSelfNominate
	}
	if user.TrustLevel < s.cfg.MinTrustLevel {
		return nil, &InsufficientTrustError{Level: s.cfg.MinTrustLevel}
	}

	return s.mutate(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) (*RosterChange, error) {
		if !e.SelfNominationAllowed {
			return nil, ErrSelfNominationNotAllowed
		}
		if e.IsNominee(user.ID) {
			return &RosterChange{Nominations: e.Nominations}, nil
		}
		nominations := append(append([]int64{}, e.Nominations...), user.ID)
		return s.apply(ctx, tx, fx, e, nominations)
	})
}

// RemoveSelf withdraws the acting user. Withdrawing when not nominated is
// not an error.
func (s *NominationService) RemoveSelf(ctx context.Context, topicID int64, user *models.User) (*RosterChange, error) {
	if user == nil {
		return nil, ErrNotAuthorized
	}

	return s.mutate(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) (*RosterChange, error) {
		if !e.IsNominee(user.ID) {
			return &RosterChange{Nominations: e.Nominations}, nil
		}
		nominations := make([]int64, 0, len(e.Nominations))
		for _, id := range e.Nominations {
			if id != user.ID {
				nominations = append(nominations, id)
			}
		}
		return s.apply(ctx, tx, fx, e, nominations)
	})
}

func (s *NominationService) mutate(ctx context.Context, topicID int64, fn func(tx repository.FullRepository, fx *effects, e *models.Election) (*RosterChange, error)) (*RosterChange, error) {
	var change *RosterChange
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		e, err := loadElection(ctx, tx, topicID)
		if err != nil {
			return err
		}
		change, err = fn(tx, fx, e)
		return err
	})
	if err != nil {
		return nil, err
	}

	fx.run(ctx)
	return change, nil
}

// apply reconciles the election with a new roster: statements of removed
// nominees are dropped, earlier statements of added nominees are restored,
// the post is rebuilt once and the open threshold is checked.
func (s *NominationService) apply(ctx context.Context, tx repository.FullRepository, fx *effects, e *models.Election, nominations []int64) (*RosterChange, error) {
	added := difference(nominations, e.Nominations)
	removed := difference(e.Nominations, nominations)
	if len(added) == 0 && len(removed) == 0 {
		return nil, ErrNominationsNotChanged
	}
	if e.Status != models.StatusNomination && len(nominations) < 2 {
		return nil, ErrInsufficientNominees
	}

	if len(added) > 0 {
		users, err := tx.GetUsers(ctx, added)
		if err != nil {
			return nil, err
		}
		if len(users) != len(added) {
			return nil, &UserNotFoundError{Username: strconv.FormatInt(missing(added, users), 10)}
		}
	}

	previous := len(e.Nominations)
	e.Nominations = nominations
	change := &RosterChange{Added: added, Removed: removed, Nominations: nominations}

	s.statements.Remove(e, removed)

	posts, err := s.statements.Retrieve(ctx, tx, e.TopicID, added)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		st, err := s.statements.Upsert(e, &posts[i])
		if err != nil {
			return nil, err
		}
		change.Restored = append(change.Restored, st)
	}

	if err := tx.SaveElection(ctx, e); err != nil {
		return nil, ErrSetNominationsFailed.Wrapf(err)
	}
	if _, err := s.posts.Rebuild(ctx, tx, e); err != nil {
		return nil, ErrSetNominationsFailed.Wrapf(err)
	}

	openNow, err := s.times.CheckOpenThreshold(ctx, tx, fx, e, previous)
	if err != nil {
		return nil, err
	}
	if openNow && s.elections != nil {
		s.elections.fireLater(fx, e.TopicID, PollOpen)
	}

	fx.refresh(e.TopicID)
	s.log.Info("Nominations updated", "topic_id", e.TopicID, "added", added, "removed", removed)
	return change, nil
}

// difference returns the ids of a that are not in b, in the order of a
func difference(a, b []int64) []int64 {
	in := make(map[int64]bool, len(b))
	for _, id := range b {
		in[id] = true
	}
	var out []int64
	for _, id := range a {
		if !in[id] {
			out = append(out, id)
		}
	}
	return out
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missing(ids []int64, users []models.User) int64 {
	found := make(map[int64]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return id
		}
	}
	return 0
}
