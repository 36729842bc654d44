package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// PollSide selects the automatic poll opening or closing
type PollSide int

const (
	PollOpen PollSide = iota
	PollClose
)

type pollSideInfo struct {
	name   string
	kind   models.JobKind
	from   models.ElectionStatus
	target models.ElectionStatus
	failed string
	timing func(e *models.Election) *models.PollTiming
}

var pollSides = map[PollSide]pollSideInfo{
	PollOpen: {
		name:   "open",
		kind:   models.JobOpenPoll,
		from:   models.StatusNomination,
		target: models.StatusPoll,
		failed: NotificationErrorStartingPoll,
		timing: func(e *models.Election) *models.PollTiming { return &e.PollOpen },
	},
	PollClose: {
		name:   "close",
		kind:   models.JobClosePoll,
		from:   models.StatusPoll,
		target: models.StatusClosedPoll,
		failed: NotificationErrorClosingPoll,
		timing: func(e *models.Election) *models.PollTiming { return &e.PollClose },
	},
}

func (p PollSide) String() string {
	if info, ok := pollSides[p]; ok {
		return info.name
	}
	return fmt.Sprintf("PollSide(%d)", int(p))
}

// ParsePollSide parses "open" or "close"
func ParsePollSide(s string) (PollSide, error) {
	for side, info := range pollSides {
		if strings.EqualFold(s, info.name) {
			return side, nil
		}
	}
	return 0, ErrInvalidPollSide
}

// PollSideForJob returns the side a poll job kind acts on
func PollSideForJob(kind models.JobKind) (PollSide, bool) {
	for side, info := range pollSides {
		if info.kind == kind {
			return side, true
		}
	}
	return 0, false
}

// PollTimeConfig is a request to configure automatic poll opening or closing.
// Hours and Threshold are pointers so a missing value can be told apart from
// zero.
type PollTimeConfig struct {
	Side      string `json:"type"`
	Enabled   bool   `json:"enabled"`
	After     bool   `json:"after"`
	Hours     *int   `json:"hours,omitempty"`
	Threshold *int   `json:"threshold,omitempty"`
	Time      string `json:"time,omitempty"`
}

// ElectionTime schedules automatic poll transitions as persisted jobs
type ElectionTime struct {
	log         logger.Logger
	repo        repository.FullRepository
	lists       *CategoryListService
	broadcaster Broadcaster
	now         func() time.Time
}

// NewElectionTime creates a new ElectionTime
func NewElectionTime(log logger.Logger, repo repository.FullRepository, lists *CategoryListService) *ElectionTime {
	return &ElectionTime{log: log, repo: repo, lists: lists, now: time.Now}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (t *ElectionTime) SetBroadcaster(b Broadcaster) {
	t.broadcaster = b
}

// SetClock replaces the time source
func (t *ElectionTime) SetClock(now func() time.Time) {
	t.now = now
}

// Schedule enqueues the side's job at its configured time, replacing any
// pending one. It does nothing when the side is disabled or has no time.
func (t *ElectionTime) Schedule(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, side PollSide) error {
	info := pollSides[side]
	timing := info.timing(e)
	if !timing.Enabled || timing.Time == nil {
		return nil
	}

	if _, err := repo.CancelJobs(ctx, info.kind, e.TopicID); err != nil {
		return err
	}

	runAt := timing.Time.UTC()
	job := models.Job{
		ID:         uuid.NewString(),
		Kind:       info.kind,
		TopicID:    e.TopicID,
		CategoryID: e.CategoryID,
		RunAt:      runAt,
		CreatedAt:  t.now(),
	}
	if err := repo.EnqueueJob(ctx, job); err != nil {
		return err
	}

	timing.Scheduled = true
	if err := repo.SaveElection(ctx, e); err != nil {
		return err
	}
	if err := t.lists.Update(ctx, repo, fx, e, ListUpdate{Time: &runAt}); err != nil {
		return err
	}

	t.log.Info("Scheduled poll "+info.name, "topic_id", e.TopicID, "job_id", job.ID, "run_at", runAt)
	fx.refresh(e.TopicID)
	return nil
}

// SetAfter sets the side's time to its configured hours from now and
// schedules it. With zero hours nothing is scheduled and it reports true:
// the caller runs the transition once the transaction commits.
func (t *ElectionTime) SetAfter(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, side PollSide) (bool, error) {
	timing := pollSides[side].timing(e)
	if !timing.Enabled || !timing.After {
		return false, nil
	}

	at := t.now().UTC().Add(time.Duration(timing.Hours) * time.Hour).Truncate(time.Second)
	timing.Time = &at

	if timing.Hours == 0 {
		if err := t.Cancel(ctx, repo, fx, e, side); err != nil {
			return false, err
		}
		return true, repo.SaveElection(ctx, e)
	}
	return false, t.Schedule(ctx, repo, fx, e, side)
}

// Cancel removes the side's pending job
func (t *ElectionTime) Cancel(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, side PollSide) error {
	info := pollSides[side]
	n, err := repo.CancelJobs(ctx, info.kind, e.TopicID)
	if err != nil {
		return err
	}

	timing := info.timing(e)
	if !timing.Scheduled && n == 0 {
		return nil
	}

	timing.Scheduled = false
	if err := repo.SaveElection(ctx, e); err != nil {
		return err
	}
	if err := t.lists.Update(ctx, repo, fx, e, ListUpdate{}); err != nil {
		return err
	}

	t.log.Info("Cancelled poll "+info.name, "topic_id", e.TopicID)
	fx.refresh(e.TopicID)
	return nil
}

// CheckOpenThreshold reacts to a roster size change from previous. Crossing
// the open threshold upwards starts the open countdown; dropping below it
// cancels a pending open. It reports true when the poll should open as soon
// as the transaction commits.
func (t *ElectionTime) CheckOpenThreshold(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, previous int) (bool, error) {
	open := e.PollOpen
	if e.Status != models.StatusNomination || !open.Enabled || !open.After || open.Threshold <= 0 {
		return false, nil
	}

	current := len(e.Nominations)
	switch {
	case previous < open.Threshold && current >= open.Threshold:
		return t.SetAfter(ctx, repo, fx, e, PollOpen)
	case current < open.Threshold && open.Scheduled:
		return false, t.Cancel(ctx, repo, fx, e, PollOpen)
	}
	return false, nil
}

// CheckCloseThreshold reacts to a voter count change. Crossing the close
// voter threshold while polling starts the close countdown.
func (t *ElectionTime) CheckCloseThreshold(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, previous, current int) (bool, error) {
	closing := e.PollClose
	if e.Status != models.StatusPoll || !closing.Enabled || !closing.After || closing.Threshold <= 0 {
		return false, nil
	}
	if previous < closing.Threshold && current >= closing.Threshold {
		return t.SetAfter(ctx, repo, fx, e, PollClose)
	}
	return false, nil
}

// ValidatePollTime checks a poll time request against the election. Checks
// run in a fixed order and the first failure is returned.
func (t *ElectionTime) ValidatePollTime(e *models.Election, cfg PollTimeConfig) (PollSide, *time.Time, error) {
	side, err := ParsePollSide(cfg.Side)
	if err != nil {
		return 0, nil, err
	}
	if !cfg.Enabled {
		return side, nil, nil
	}

	if cfg.After {
		if cfg.Hours == nil || (side == PollOpen && cfg.Threshold == nil) {
			return side, nil, ErrPollAfterIncomplete
		}
		if side == PollOpen && *cfg.Threshold < 2 {
			return side, nil, ErrNominationsAtLeast2
		}
		if side == PollClose && *cfg.Hours < 1 {
			return side, nil, ErrCloseHoursAtLeast1
		}
		if side == PollOpen && e.Status == models.StatusNomination && len(e.Nominations) >= *cfg.Threshold {
			return side, nil, ErrNominationsAlreadyMet
		}
		if *cfg.Hours < 0 || (cfg.Threshold != nil && *cfg.Threshold < 0) {
			return side, nil, ErrPollAfterIncomplete
		}
		return side, nil, nil
	}

	if cfg.Time == "" {
		return side, nil, ErrTimeInvalid
	}
	at, err := time.Parse(time.RFC3339, cfg.Time)
	if err != nil {
		return side, nil, ErrTimeInvalid.Wrapf(err)
	}
	if !at.After(t.now()) {
		return side, nil, ErrTimeInvalid
	}
	at = at.UTC()
	return side, &at, nil
}

// SetPollTime validates and stores the automatic open or close
// configuration of an election, then schedules or cancels its job.
func (t *ElectionTime) SetPollTime(ctx context.Context, topicID int64, cfg PollTimeConfig) error {
	fx := newEffects(t.broadcaster)
	err := t.repo.InTx(ctx, func(tx repository.FullRepository) error {
		e, err := loadElection(ctx, tx, topicID)
		if err != nil {
			return err
		}

		side, at, err := t.ValidatePollTime(e, cfg)
		if err != nil {
			return err
		}

		timing := pollSides[side].timing(e)
		timing.Enabled = cfg.Enabled
		if cfg.Enabled {
			timing.After = cfg.After
			if cfg.After {
				timing.Hours = *cfg.Hours
				timing.Threshold = 0
				if cfg.Threshold != nil {
					timing.Threshold = *cfg.Threshold
				}
				timing.Time = nil
			} else {
				timing.Time = at
			}
		}
		if err := tx.SaveElection(ctx, e); err != nil {
			return err
		}

		// Any pending job was scheduled from the old configuration
		if err := t.Cancel(ctx, tx, fx, e, side); err != nil {
			return err
		}
		if !cfg.Enabled {
			return nil
		}

		switch {
		case side == PollOpen && !cfg.After && e.Status == models.StatusNomination:
			return t.Schedule(ctx, tx, fx, e, side)
		case side == PollClose && !cfg.After && e.Status == models.StatusPoll:
			return t.Schedule(ctx, tx, fx, e, side)
		case side == PollClose && cfg.After && e.Status == models.StatusPoll &&
			(timing.Threshold == 0 || e.PollVoters >= timing.Threshold):
			_, err := t.SetAfter(ctx, tx, fx, e, side)
			return err
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
