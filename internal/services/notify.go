package services

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// Notification types
const (
	NotificationStatusChanged     = "election_status_changed"
	NotificationErrorUpdatingPost = "error_updating_election_post"
	NotificationErrorStartingPoll = "error_starting_poll"
	NotificationErrorClosingPoll  = "error_closing_poll"
)

// Notifier delivers election notifications to nominees and moderators.
// Delivery runs through the dispatcher, a new goroutine unless replaced,
// and each notification is retried before the failure is logged.
type Notifier struct {
	log      logger.Logger
	repo     repository.FullRepository
	dispatch func(func())
	attempts uint
	delay    time.Duration
}

// NewNotifier creates a new Notifier
func NewNotifier(log logger.Logger, repo repository.FullRepository) *Notifier {
	return &Notifier{
		log:      log,
		repo:     repo,
		dispatch: func(fn func()) { go fn() },
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
}

// SetDispatcher replaces how deliveries are run. Tests pass a function that
// runs the delivery inline.
func (n *Notifier) SetDispatcher(d func(func())) {
	n.dispatch = d
}

// SetRetry configures delivery attempts and the initial delay between them
func (n *Notifier) SetRetry(attempts uint, delay time.Duration) {
	n.attempts = attempts
	n.delay = delay
}

// Moderators returns the moderators responsible for a category: its category
// moderators if there are any, otherwise the site moderators without a
// category.
func Moderators(ctx context.Context, repo repository.UserRepository, categoryID int64) ([]models.User, error) {
	all, err := repo.ListModerators(ctx)
	if err != nil {
		return nil, err
	}

	var category, site []models.User
	for _, u := range all {
		switch {
		case u.ModeratorCategoryID == nil:
			site = append(site, u)
		case categoryID != 0 && *u.ModeratorCategoryID == categoryID:
			category = append(category, u)
		}
	}
	if len(category) > 0 {
		return category, nil
	}
	return site, nil
}

// NotifyStatusChange tells the nominees and the moderators that the
// election moved to a new status
func (n *Notifier) NotifyStatusChange(ctx context.Context, e models.Election, tr StatusTransition) {
	data := map[string]any{
		"status": tr.To.String(),
		"from":   tr.From.String(),
		"title":  e.Title,
		"url":    e.URL(),
	}

	n.run(ctx, "status change", e.TopicID, func(ctx context.Context) ([]models.Notification, error) {
		var out []models.Notification
		for _, id := range e.Nominations {
			out = append(out, models.Notification{UserID: id, TopicID: e.TopicID, Type: NotificationStatusChanged, Data: data})
		}

		mods, err := Moderators(ctx, n.repo, e.CategoryID)
		if err != nil {
			return out, err
		}
		for _, m := range mods {
			out = append(out, models.Notification{UserID: m.ID, TopicID: e.TopicID, Type: NotificationStatusChanged, Data: data})
		}
		return out, nil
	})
}

// MessageModerators sends a system message about a failed automatic action.
// A zero categoryID targets the site moderators.
func (n *Notifier) MessageModerators(ctx context.Context, topicID, categoryID int64, kind string, cause error) {
	data := map[string]any{}
	if cause != nil {
		data["error"] = cause.Error()
	}

	n.run(ctx, kind, topicID, func(ctx context.Context) ([]models.Notification, error) {
		mods, err := Moderators(ctx, n.repo, categoryID)
		if err != nil {
			return nil, err
		}
		out := make([]models.Notification, 0, len(mods))
		for _, m := range mods {
			out = append(out, models.Notification{UserID: m.ID, TopicID: topicID, Type: kind, Data: data})
		}
		return out, nil
	})
}

func (n *Notifier) run(ctx context.Context, what string, topicID int64, build func(context.Context) ([]models.Notification, error)) {
	ctx = context.WithoutCancel(ctx)

	n.dispatch(func() {
		notifications, err := build(ctx)
		if err != nil {
			n.log.Error("Failed to resolve notification recipients", "kind", what, "topic_id", topicID, "error", err)
		}

		for _, notification := range notifications {
			err := retry.Do(
				func() error {
					_, err := n.repo.CreateNotification(ctx, notification)
					if errors.Is(err, context.Canceled) {
						return retry.Unrecoverable(err)
					}
					return err
				},
				retry.Attempts(n.attempts),
				retry.Delay(n.delay),
				retry.Context(ctx),
				retry.OnRetry(func(attempt uint, err error) {
					n.log.Warn("Retrying notification", "kind", what, "user_id", notification.UserID, "attempt", attempt+1, "error", err)
				}),
			)
			if err != nil {
				n.log.Error("Failed to deliver notification", "kind", what, "user_id", notification.UserID, "topic_id", topicID, "error", err)
			}
		}
	})
}

// List returns a user's notifications, newest first
func (n *Notifier) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	return n.repo.ListNotifications(ctx, userID)
}
