package repository

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
)

// newTestRepo creates a new in-memory repository for testing.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seedTopic creates a user, a category and a topic with a first post
func seedTopic(t *testing.T, repo *Repository) (userID, categoryID, topicID, postID int64) {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, models.User{Username: "system", Admin: true})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	categoryID, err = repo.CreateCategory(ctx, models.Category{Name: "Elections", Slug: "elections", ForElections: true})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	topicID, err = repo.CreateTopic(ctx, models.Topic{CategoryID: categoryID, Title: "Moderator Election", Slug: "moderator-election", UserID: userID, Subtype: "election"})
	if err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	postID, err = repo.CreatePost(ctx, models.Post{TopicID: topicID, UserID: userID, Raw: "first", Cooked: "<p>first</p>"})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	return userID, categoryID, topicID, postID
}

// ==================== User Tests ====================

func TestUsers_CreateAndLookup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	catID := int64(4)
	id, err := repo.CreateUser(ctx, models.User{Username: "Alice", TrustLevel: 2, Moderator: true, ModeratorCategoryID: &catID})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u.ID != id || u.Username != "Alice" {
		t.Errorf("unexpected user %+v", u)
	}
	if u.ModeratorCategoryID == nil || *u.ModeratorCategoryID != 4 {
		t.Errorf("expected moderator category 4, got %v", u.ModeratorCategoryID)
	}

	if _, err := repo.GetUser(ctx, 999); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUsers_PreservesOrderAndSkipsMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateUser(ctx, models.User{Username: "a"})
	b, _ := repo.CreateUser(ctx, models.User{Username: "b"})
	c, _ := repo.CreateUser(ctx, models.User{Username: "c"})

	users, err := repo.GetUsers(ctx, []int64{c, 999, a, b})
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].ID != c || users[1].ID != a || users[2].ID != b {
		t.Errorf("unexpected order: %d %d %d", users[0].ID, users[1].ID, users[2].ID)
	}

	empty, err := repo.GetUsers(ctx, nil)
	if err != nil || empty != nil {
		t.Errorf("expected nil result for no ids, got %v %v", empty, err)
	}
}

func TestListModerators(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.CreateUser(ctx, models.User{Username: "member"})
	repo.CreateUser(ctx, models.User{Username: "mod", Moderator: true})
	repo.CreateUser(ctx, models.User{Username: "admin", Admin: true})

	mods, err := repo.ListModerators(ctx)
	if err != nil {
		t.Fatalf("ListModerators failed: %v", err)
	}
	if len(mods) != 1 || mods[0].Username != "mod" {
		t.Errorf("expected only mod, got %+v", mods)
	}
}

// ==================== Category Tests ====================

func TestElectionList_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, categoryID, _, _ := seedTopic(t, repo)

	list, err := repo.GetElectionList(ctx, categoryID)
	if err != nil {
		t.Fatalf("GetElectionList failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d entries", len(list))
	}

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = repo.SaveElectionList(ctx, categoryID, []models.ElectionListEntry{
		{TopicID: 1, URL: "/t/a/1", Status: models.StatusPoll, Position: "Moderator", Banner: true, Time: &when},
	})
	if err != nil {
		t.Fatalf("SaveElectionList failed: %v", err)
	}

	list, err = repo.GetElectionList(ctx, categoryID)
	if err != nil {
		t.Fatalf("GetElectionList failed: %v", err)
	}
	if len(list) != 1 || list[0].Status != models.StatusPoll || !list[0].Time.Equal(when) {
		t.Errorf("unexpected list %+v", list)
	}

	if err := repo.SaveElectionList(ctx, 999, nil); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing category, got %v", err)
	}
}

// ==================== Election Tests ====================

func TestGetElection_NotAnElection(t *testing.T) {
	repo := newTestRepo(t)
	_, _, topicID, _ := seedTopic(t, repo)

	_, err := repo.GetElection(context.Background(), topicID)
	if !stderrors.Is(err, ErrNotElection) {
		t.Errorf("expected ErrNotElection, got %v", err)
	}

	_, err = repo.GetElection(context.Background(), 999)
	if !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveElection_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, topicID, _ := seedTopic(t, repo)

	openAt := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	in := &models.Election{
		TopicID:                 topicID,
		Status:                  models.StatusNomination,
		Position:                "Moderator",
		SelfNominationAllowed:   true,
		Nominations:             []int64{3, 1, 2},
		Statements:              []models.NominationStatement{{PostID: 9, UserID: 3, Excerpt: "hi"}},
		NominationMessage:       "nominate",
		PollMessage:             "vote",
		ClosedPollMessage:       "done",
		StatusBanner:            true,
		StatusBannerResultHours: 24,
		PollOpen:                models.PollTiming{Enabled: true, Time: &openAt, Scheduled: true},
		PollClose:               models.PollTiming{Enabled: true, After: true, Hours: 48, Threshold: 10},
		PollVoters:              4,
	}
	if err := repo.SaveElection(ctx, in); err != nil {
		t.Fatalf("SaveElection failed: %v", err)
	}

	out, err := repo.GetElection(ctx, topicID)
	if err != nil {
		t.Fatalf("GetElection failed: %v", err)
	}

	if out.Status != models.StatusNomination || out.Position != "Moderator" || !out.SelfNominationAllowed {
		t.Errorf("scalar fields not restored: %+v", out)
	}
	if len(out.Nominations) != 3 || out.Nominations[0] != 3 {
		t.Errorf("nominations not restored in order: %v", out.Nominations)
	}
	if len(out.Statements) != 1 || out.Statements[0].Excerpt != "hi" {
		t.Errorf("statements not restored: %+v", out.Statements)
	}
	if out.PollOpen.Time == nil || !out.PollOpen.Time.Equal(openAt) || !out.PollOpen.Scheduled {
		t.Errorf("poll open timing not restored: %+v", out.PollOpen)
	}
	if !out.PollClose.After || out.PollClose.Hours != 48 || out.PollClose.Threshold != 10 || out.PollClose.Time != nil {
		t.Errorf("poll close timing not restored: %+v", out.PollClose)
	}
	if out.Title != "Moderator Election" || out.URL() != "/t/moderator-election/"+strconv.FormatInt(topicID, 10) {
		t.Errorf("topic fields not restored: %q %q", out.Title, out.URL())
	}

	// Overwrite clears the time field
	in.PollOpen = models.PollTiming{}
	in.Status = models.StatusPoll
	if err := repo.SaveElection(ctx, in); err != nil {
		t.Fatalf("SaveElection failed: %v", err)
	}
	out, _ = repo.GetElection(ctx, topicID)
	if out.Status != models.StatusPoll || out.PollOpen.Time != nil || out.PollOpen.Enabled {
		t.Errorf("overwrite not applied: %+v", out)
	}
}

func TestListElections_FiltersByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID, categoryID, topicID, _ := seedTopic(t, repo)

	other, _ := repo.CreateTopic(ctx, models.Topic{CategoryID: categoryID, Title: "Admin Election", Slug: "admin-election", UserID: userID})
	closed, _ := repo.CreateTopic(ctx, models.Topic{CategoryID: categoryID, Title: "Old Election", Slug: "old-election", UserID: userID})

	repo.SaveElection(ctx, &models.Election{TopicID: topicID, Status: models.StatusNomination, Position: "Moderator"})
	repo.SaveElection(ctx, &models.Election{TopicID: other, Status: models.StatusPoll, Position: "Admin"})
	repo.SaveElection(ctx, &models.Election{TopicID: closed, Status: models.StatusClosedPoll, Position: "Old"})

	active, err := repo.ListElections(ctx, categoryID, []models.ElectionStatus{models.StatusNomination, models.StatusPoll})
	if err != nil {
		t.Fatalf("ListElections failed: %v", err)
	}
	if len(active) != 2 || active[0].TopicID != topicID || active[1].TopicID != other {
		t.Errorf("unexpected elections: %+v", active)
	}
}

// ==================== Post Tests ====================

func TestCreatePost_NumbersSequentially(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID, _, topicID, firstID := seedTopic(t, repo)

	replyID, err := repo.CreatePost(ctx, models.Post{TopicID: topicID, UserID: userID, Raw: "reply", Cooked: "<p>reply</p>"})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	first, _ := repo.GetFirstPost(ctx, topicID)
	reply, _ := repo.GetPost(ctx, replyID)
	if first.ID != firstID || first.PostNumber != 1 {
		t.Errorf("unexpected first post %+v", first)
	}
	if reply.PostNumber != 2 {
		t.Errorf("expected reply to be post 2, got %d", reply.PostNumber)
	}
}

func TestUpdatePost_SkipRevision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, _, postID := seedTopic(t, repo)

	if err := repo.UpdatePost(ctx, postID, "rebuilt", "<p>rebuilt</p>", true); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	p, _ := repo.GetPost(ctx, postID)
	count, _ := repo.CountRevisions(ctx, postID)
	if p.Raw != "rebuilt" || p.Version != 1 || count != 0 {
		t.Errorf("expected silent update, got raw=%q version=%d revisions=%d", p.Raw, p.Version, count)
	}

	if err := repo.UpdatePost(ctx, postID, "edited", "<p>edited</p>", false); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	p, _ = repo.GetPost(ctx, postID)
	count, _ = repo.CountRevisions(ctx, postID)
	if p.Raw != "edited" || p.Version != 2 || count != 1 {
		t.Errorf("expected revision, got raw=%q version=%d revisions=%d", p.Raw, p.Version, count)
	}

	if err := repo.UpdatePost(ctx, 999, "x", "x", false); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestStatementPost(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, topicID, _ := seedTopic(t, repo)
	nominee, _ := repo.CreateUser(ctx, models.User{Username: "nominee"})

	if _, err := repo.LatestStatementPost(ctx, topicID, nominee); !stderrors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older, _ := repo.CreatePost(ctx, models.Post{TopicID: topicID, UserID: nominee, Raw: "old", Cooked: "old", NominationStatement: true})
	newer, _ := repo.CreatePost(ctx, models.Post{TopicID: topicID, UserID: nominee, Raw: "new", Cooked: "new", NominationStatement: true})
	repo.CreatePost(ctx, models.Post{TopicID: topicID, UserID: nominee, Raw: "chat", Cooked: "chat"})

	p, err := repo.LatestStatementPost(ctx, topicID, nominee)
	if err != nil {
		t.Fatalf("LatestStatementPost failed: %v", err)
	}
	if p.ID != newer {
		t.Errorf("expected newest statement %d, got %d", newer, p.ID)
	}

	repo.SetPostDeleted(ctx, newer, true)
	p, _ = repo.LatestStatementPost(ctx, topicID, nominee)
	if p.ID != older {
		t.Errorf("expected fallback to %d after delete, got %d", older, p.ID)
	}

	deleted, _ := repo.GetPost(ctx, newer)
	if !deleted.Deleted() {
		t.Error("expected post to be soft-deleted")
	}
	repo.SetPostDeleted(ctx, newer, false)
	recovered, _ := repo.GetPost(ctx, newer)
	if recovered.Deleted() {
		t.Error("expected post to be recovered")
	}
}

func TestSetPollState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, _, postID := seedTopic(t, repo)

	if err := repo.SetPollState(ctx, postID, models.PollStateOpen, 3); err != nil {
		t.Fatalf("SetPollState failed: %v", err)
	}
	p, _ := repo.GetPost(ctx, postID)
	if p.PollStatus != models.PollStateOpen || p.PollVoters != 3 {
		t.Errorf("unexpected poll state %q/%d", p.PollStatus, p.PollVoters)
	}

	repo.SetPollState(ctx, postID, "", 0)
	p, _ = repo.GetPost(ctx, postID)
	if p.PollStatus != "" {
		t.Errorf("expected poll cleared, got %q", p.PollStatus)
	}
}

// ==================== Notification Tests ====================

func TestNotifications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID, _, topicID, _ := seedTopic(t, repo)

	_, err := repo.CreateNotification(ctx, models.Notification{UserID: userID, TopicID: topicID, Type: "election_status_changed", Data: map[string]any{"status": "poll"}})
	if err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	repo.CreateNotification(ctx, models.Notification{UserID: userID, Type: "plain"})

	list, err := repo.ListNotifications(ctx, userID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].Type != "plain" || list[1].Data["status"] != "poll" {
		t.Errorf("unexpected notifications %+v", list)
	}
}

// ==================== Job Tests ====================

func TestJobs_EnqueueCancelClaim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	repo.EnqueueJob(ctx, models.Job{ID: "due", Kind: models.JobOpenPoll, TopicID: 1, RunAt: now.Add(-time.Minute)})
	repo.EnqueueJob(ctx, models.Job{ID: "later", Kind: models.JobClosePoll, TopicID: 1, RunAt: now.Add(time.Hour)})
	repo.EnqueueJob(ctx, models.Job{ID: "other", Kind: models.JobOpenPoll, TopicID: 2, RunAt: now.Add(-time.Hour)})

	jobs, err := repo.ListJobs(ctx, 1)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "due" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}

	claimed, err := repo.ClaimDueJobs(ctx, now, 10)
	if err != nil {
		t.Fatalf("ClaimDueJobs failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 due jobs, got %d", len(claimed))
	}

	again, _ := repo.ClaimDueJobs(ctx, now, 10)
	if len(again) != 0 {
		t.Errorf("expected claimed jobs to be gone, got %d", len(again))
	}

	n, err := repo.CancelJobs(ctx, models.JobClosePoll, 1)
	if err != nil || n != 1 {
		t.Errorf("expected one cancelled job, got %d (%v)", n, err)
	}
	jobs, _ = repo.ListJobs(ctx, 1)
	if len(jobs) != 0 {
		t.Errorf("expected no pending jobs, got %d", len(jobs))
	}
}

// ==================== Transaction Tests ====================

func TestInTx_CommitAndRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx FullRepository) error {
		_, err := tx.CreateUser(ctx, models.User{Username: "kept"})
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	boom := stderrors.New("boom")
	err = repo.InTx(ctx, func(tx FullRepository) error {
		if _, err := tx.CreateUser(ctx, models.User{Username: "dropped"}); err != nil {
			return err
		}
		return boom
	})
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := repo.GetUserByUsername(ctx, "kept"); err != nil {
		t.Errorf("expected committed user, got %v", err)
	}
	if _, err := repo.GetUserByUsername(ctx, "dropped"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected rolled back user to be missing, got %v", err)
	}
}

func TestInTx_Nested(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx FullRepository) error {
		return tx.InTx(ctx, func(inner FullRepository) error {
			_, err := inner.CreateUser(ctx, models.User{Username: "nested"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested InTx failed: %v", err)
	}
	if _, err := repo.GetUserByUsername(ctx, "nested"); err != nil {
		t.Errorf("expected nested write to commit, got %v", err)
	}
}
