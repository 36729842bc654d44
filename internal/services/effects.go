package services

import (
	"context"
	"errors"

	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastTopicRefresh(topicID int64)
	BroadcastElectionList(categoryID int64, list []models.ElectionListEntry)
}

// effects collects work that may only happen once a transaction has
// committed: client broadcasts, notifications and follow-up transitions.
type effects struct {
	broadcaster Broadcaster
	fns         []func(context.Context)
	topics      []int64
}

func newEffects(b Broadcaster) *effects {
	return &effects{broadcaster: b}
}

func (f *effects) add(fn func(context.Context)) {
	f.fns = append(f.fns, fn)
}

// refresh asks clients viewing the topic to reload it
func (f *effects) refresh(topicID int64) {
	for _, id := range f.topics {
		if id == topicID {
			return
		}
	}
	f.topics = append(f.topics, topicID)
}

func (f *effects) run(ctx context.Context) {
	if f.broadcaster != nil {
		for _, id := range f.topics {
			f.broadcaster.BroadcastTopicRefresh(id)
		}
	}
	for _, fn := range f.fns {
		fn(ctx)
	}
}

// loadElection maps repository lookups to service errors
func loadElection(ctx context.Context, repo repository.TopicRepository, topicID int64) (*models.Election, error) {
	e, err := repo.GetElection(ctx, topicID)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNotElection) {
		return nil, ErrElectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
