package services

import (
	"context"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// PollService receives the callbacks of the external poll on an election's
// first post
type PollService struct {
	log         logger.Logger
	repo        repository.FullRepository
	elections   *ElectionService
	times       *ElectionTime
	broadcaster Broadcaster
}

// NewPollService creates a new PollService
func NewPollService(log logger.Logger, repo repository.FullRepository, elections *ElectionService, times *ElectionTime) *PollService {
	return &PollService{log: log, repo: repo, elections: elections, times: times}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *PollService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// StatusChanged handles the poll being closed or reopened. Closing it during
// the poll closes the election; reopening a closed election's poll moves it
// back to the poll. The transition is returned when one happened.
func (s *PollService) StatusChanged(ctx context.Context, topicID int64, state string) (*StatusTransition, error) {
	if state != models.PollStateOpen && state != models.PollStateClosed {
		return nil, ErrInvalidStatus
	}

	e, err := loadElection(ctx, s.repo, topicID)
	if err != nil {
		return nil, err
	}

	var target models.ElectionStatus
	switch {
	case state == models.PollStateClosed && e.Status == models.StatusPoll:
		target = models.StatusClosedPoll
	case state == models.PollStateOpen && e.Status == models.StatusClosedPoll:
		target = models.StatusPoll
	default:
		s.log.Debug("Poll status change ignored", "topic_id", topicID, "poll", state, "status", e.Status)
		return nil, nil
	}

	return s.elections.SetStatus(ctx, topicID, target, StatusOptions{Unattended: true})
}

// VotersChanged records the poll's voter count. Crossing the close voter
// threshold starts the close countdown, or closes the poll right away when
// the countdown is zero hours.
func (s *PollService) VotersChanged(ctx context.Context, topicID int64, voters int) error {
	if voters < 0 {
		voters = 0
	}

	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		e, err := loadElection(ctx, tx, topicID)
		if err != nil {
			return err
		}
		post, err := tx.GetFirstPost(ctx, topicID)
		if err != nil {
			return err
		}
		if err := tx.SetPollState(ctx, post.ID, post.PollStatus, voters); err != nil {
			return err
		}

		previous := e.PollVoters
		if previous == voters {
			return nil
		}
		e.PollVoters = voters
		if err := tx.SaveElection(ctx, e); err != nil {
			return err
		}

		closeNow, err := s.times.CheckCloseThreshold(ctx, tx, fx, e, previous, voters)
		if err != nil {
			return err
		}
		if closeNow {
			s.elections.fireLater(fx, topicID, PollClose)
		}
		fx.refresh(topicID)
		return nil
	})
	if err != nil {
		return err
	}

	fx.run(ctx)
	return nil
}
