package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// ListUpdate overrides entry fields when updating the category election
// list. Nil fields take their value from the election.
type ListUpdate struct {
	Status *models.ElectionStatus
	Banner *bool
	Time   *time.Time
}

// ElectionSummary is one row of the category election list endpoint
type ElectionSummary struct {
	Position string                `json:"position"`
	URL      string                `json:"url"`
	Status   models.ElectionStatus `json:"status"`
}

// CategoryListService maintains the election summary list stored on each
// category
type CategoryListService struct {
	log         logger.Logger
	repo        repository.FullRepository
	broadcaster Broadcaster
	now         func() time.Time
}

// NewCategoryListService creates a new CategoryListService
func NewCategoryListService(log logger.Logger, repo repository.FullRepository) *CategoryListService {
	return &CategoryListService{log: log, repo: repo, now: time.Now}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *CategoryListService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source
func (s *CategoryListService) SetClock(now func() time.Time) {
	s.now = now
}

// Update replaces the election's entry in its category list. Entering
// ClosedPoll schedules the entry's removal after the result hours; any other
// status cancels a pending removal for this election.
func (s *CategoryListService) Update(ctx context.Context, repo repository.FullRepository, fx *effects, e *models.Election, u ListUpdate) error {
	list, err := repo.GetElectionList(ctx, e.CategoryID)
	if err != nil {
		return err
	}

	entry := models.ElectionListEntry{
		TopicID:  e.TopicID,
		URL:      e.URL(),
		Status:   e.Status,
		Position: e.Position,
		Banner:   e.StatusBanner,
		Time:     e.ScheduledTime(),
	}
	if u.Status != nil {
		entry.Status = *u.Status
	}
	if u.Banner != nil {
		entry.Banner = *u.Banner
	}
	if u.Time != nil {
		entry.Time = u.Time
	}

	list = append(withoutTopic(list, e.TopicID), entry)
	if err := repo.SaveElectionList(ctx, e.CategoryID, list); err != nil {
		return err
	}

	if _, err := repo.CancelJobs(ctx, models.JobRemoveFromCategoryList, e.TopicID); err != nil {
		return err
	}
	if entry.Status == models.StatusClosedPoll {
		now := s.now()
		job := models.Job{
			ID:         uuid.NewString(),
			Kind:       models.JobRemoveFromCategoryList,
			TopicID:    e.TopicID,
			CategoryID: e.CategoryID,
			RunAt:      now.Add(time.Duration(e.StatusBannerResultHours) * time.Hour),
			CreatedAt:  now,
		}
		if err := repo.EnqueueJob(ctx, job); err != nil {
			return err
		}
	}

	s.publish(fx, e.CategoryID, list)
	return nil
}

// Remove drops an election from its category list. It is the handler of the
// removal job.
func (s *CategoryListService) Remove(ctx context.Context, categoryID, topicID int64) error {
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		list, err := tx.GetElectionList(ctx, categoryID)
		if err != nil {
			return err
		}
		kept := withoutTopic(list, topicID)
		if len(kept) == len(list) {
			return nil
		}
		if err := tx.SaveElectionList(ctx, categoryID, kept); err != nil {
			return err
		}
		s.publish(fx, categoryID, kept)
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCategoryNotFound
	}
	if err != nil {
		return err
	}

	fx.run(ctx)
	return nil
}

// Banner returns the stored election list of a category
func (s *CategoryListService) Banner(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error) {
	list, err := s.repo.GetElectionList(ctx, categoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return list, err
}

// CategoryList returns the elections of a category that are taking
// nominations or polling
func (s *CategoryListService) CategoryList(ctx context.Context, categoryID int64) ([]ElectionSummary, error) {
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	elections, err := s.repo.ListElections(ctx, categoryID, []models.ElectionStatus{models.StatusNomination, models.StatusPoll})
	if err != nil {
		return nil, err
	}

	summaries := make([]ElectionSummary, 0, len(elections))
	for _, e := range elections {
		summaries = append(summaries, ElectionSummary{Position: e.Position, URL: e.URL(), Status: e.Status})
	}
	return summaries, nil
}

func (s *CategoryListService) publish(fx *effects, categoryID int64, list []models.ElectionListEntry) {
	fx.add(func(context.Context) {
		if s.broadcaster != nil {
			s.broadcaster.BroadcastElectionList(categoryID, list)
		}
	})
}

func withoutTopic(list []models.ElectionListEntry, topicID int64) []models.ElectionListEntry {
	kept := make([]models.ElectionListEntry, 0, len(list))
	for _, entry := range list {
		if entry.TopicID != topicID {
			kept = append(kept, entry)
		}
	}
	return kept
}
