package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository/mock"
	"github.com/abrezinsky/forumelections/internal/services"
	"github.com/abrezinsky/forumelections/internal/testutil"
)

func TestModerators(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	ctx := context.Background()
	elections := testutil.CreateCategory(t, repo, "Elections", true)
	other := testutil.CreateCategory(t, repo, "Other", true)

	site := testutil.CreateUser(t, repo, "sitemod", testutil.Moderator)
	scoped := testutil.CreateUser(t, repo, "catmod", testutil.CategoryModerator(elections))
	testutil.CreateUser(t, repo, "member")

	tests := []struct {
		name       string
		categoryID int64
		want       int64
	}{
		{"category moderators first", elections, scoped.ID},
		{"site moderators otherwise", other, site.ID},
		{"no category", 0, site.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods, err := services.Moderators(ctx, repo, tt.categoryID)
			if err != nil {
				t.Fatalf("Moderators failed: %v", err)
			}
			if len(mods) != 1 || mods[0].ID != tt.want {
				t.Errorf("expected moderator %d, got %+v", tt.want, mods)
			}
		})
	}
}

func TestNotifier_MessageModerators(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	mod := testutil.CreateUser(t, repo, "sitemod", testutil.Moderator)

	n := services.NewNotifier(logger.Discard(), repo)
	n.SetDispatcher(func(fn func()) { fn() })
	n.MessageModerators(context.Background(), 7, 0, services.NotificationErrorStartingPoll, errors.New("boom"))

	list, err := n.List(context.Background(), mod.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one notification, got %d", len(list))
	}
	if list[0].Type != services.NotificationErrorStartingPoll || list[0].TopicID != 7 {
		t.Errorf("unexpected notification %+v", list[0])
	}
	if list[0].Data["error"] != "boom" {
		t.Errorf("expected the cause in the payload, got %+v", list[0].Data)
	}
}

func TestNotifier_NotifyStatusChange(t *testing.T) {
	env := newTestEnv(t)
	mod := testutil.CreateUser(t, env.repo, "catmod", testutil.CategoryModerator(env.categoryID))
	topicID := env.createElection(t, "moderator")
	users := env.nominees(t, topicID, "alice", "bob")
	e := env.election(t, topicID)

	env.notifier.NotifyStatusChange(context.Background(), *e, services.StatusTransition{From: models.StatusNomination, To: models.StatusPoll})

	for _, id := range []int64{users[0].ID, users[1].ID, mod.ID} {
		if got := notificationTypes(t, env.repo, id)[services.NotificationStatusChanged]; got != 1 {
			t.Errorf("expected one status notification for user %d, got %d", id, got)
		}
	}
}

func TestNotifier_DeliveryFailureIsLogged(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	testutil.CreateUser(t, repo, "sitemod", testutil.Moderator)

	mockRepo := mock.NewRepository(repo)
	mockRepo.CreateNotificationError = errors.New("database error")

	n := services.NewNotifier(logger.Discard(), mockRepo)
	n.SetDispatcher(func(fn func()) { fn() })
	n.SetRetry(2, 0)

	// Must not panic or block
	n.MessageModerators(context.Background(), 1, 0, services.NotificationErrorClosingPoll, nil)
}

func TestNotifier_RecipientLookupFailure(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	mod := testutil.CreateUser(t, repo, "sitemod", testutil.Moderator)

	mockRepo := mock.NewRepository(repo)
	mockRepo.ListModeratorsError = errors.New("database error")

	n := services.NewNotifier(logger.Discard(), mockRepo)
	n.SetDispatcher(func(fn func()) { fn() })
	n.MessageModerators(context.Background(), 1, 0, services.NotificationErrorClosingPoll, nil)

	list, err := repo.ListNotifications(context.Background(), mod.ID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected nothing delivered, got %d", len(list))
	}
}
