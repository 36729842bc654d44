package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
	"github.com/abrezinsky/forumelections/internal/services"
	"github.com/abrezinsky/forumelections/internal/testutil"
)

var testNow = time.Date(2030, time.March, 4, 12, 0, 0, 0, time.UTC)

// testEnv wires every election service against one repository with a fixed
// clock and inline notification delivery
type testEnv struct {
	repo        repository.FullRepository
	renderer    *services.ElectionPostService
	statements  *services.StatementService
	lists       *services.CategoryListService
	times       *services.ElectionTime
	notifier    *services.Notifier
	elections   *services.ElectionService
	nominations *services.NominationService
	posts       *services.PostService
	polls       *services.PollService
	broadcaster *mockBroadcaster

	categoryID int64
	system     *models.User
	admin      *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, testutil.NewTestRepository(t))
}

func newTestEnvWithRepo(t *testing.T, repo repository.FullRepository) *testEnv {
	t.Helper()
	log := logger.Discard()

	env := &testEnv{repo: repo, broadcaster: &mockBroadcaster{}}
	env.renderer = services.NewElectionPostService(log, 32000)
	env.statements = services.NewStatementService(log)
	env.lists = services.NewCategoryListService(log, repo)
	env.lists.SetClock(func() time.Time { return testNow })
	env.times = services.NewElectionTime(log, repo, env.lists)
	env.times.SetClock(func() time.Time { return testNow })
	env.notifier = services.NewNotifier(log, repo)
	env.notifier.SetDispatcher(func(fn func()) { fn() })
	env.notifier.SetRetry(1, 0)
	env.elections = services.NewElectionService(log, repo, services.ElectionConfig{Enabled: true}, env.renderer, env.lists, env.times, env.notifier)
	env.nominations = services.NewNominationService(log, repo, services.NominationConfig{MinTrustLevel: 1}, env.statements, env.renderer, env.times, env.elections)
	env.posts = services.NewPostService(log, repo, env.statements, env.renderer)
	env.polls = services.NewPollService(log, repo, env.elections, env.times)

	env.lists.SetBroadcaster(env.broadcaster)
	env.times.SetBroadcaster(env.broadcaster)
	env.elections.SetBroadcaster(env.broadcaster)
	env.nominations.SetBroadcaster(env.broadcaster)
	env.posts.SetBroadcaster(env.broadcaster)
	env.polls.SetBroadcaster(env.broadcaster)

	env.system = testutil.CreateUser(t, repo, services.SystemUsername, testutil.Admin)
	env.admin = testutil.CreateUser(t, repo, "admin", testutil.Admin)
	env.categoryID = testutil.CreateCategory(t, repo, "Elections", true)
	return env
}

// createElection creates a Nomination election and returns its topic id
func (env *testEnv) createElection(t *testing.T, position string) int64 {
	t.Helper()
	e, err := env.elections.Create(context.Background(), env.admin, services.CreateElection{
		CategoryID:            env.categoryID,
		Position:              position,
		SelfNominationAllowed: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return e.TopicID
}

// nominees creates users and sets them as the election's roster
func (env *testEnv) nominees(t *testing.T, topicID int64, usernames ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, len(usernames))
	ids := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		u := testutil.CreateUser(t, env.repo, name)
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if _, err := env.nominations.SetRoster(context.Background(), topicID, ids); err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}
	return users
}

func (env *testEnv) election(t *testing.T, topicID int64) *models.Election {
	t.Helper()
	e, err := env.repo.GetElection(context.Background(), topicID)
	if err != nil {
		t.Fatalf("GetElection failed: %v", err)
	}
	return e
}

func (env *testEnv) firstPost(t *testing.T, topicID int64) *models.Post {
	t.Helper()
	post, err := env.repo.GetFirstPost(context.Background(), topicID)
	if err != nil {
		t.Fatalf("GetFirstPost failed: %v", err)
	}
	return post
}

func (env *testEnv) jobs(t *testing.T, topicID int64, kind models.JobKind) []models.Job {
	t.Helper()
	all, err := env.repo.ListJobs(context.Background(), topicID)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	var jobs []models.Job
	for _, job := range all {
		if job.Kind == kind {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (env *testEnv) listEntry(t *testing.T, topicID int64) *models.ElectionListEntry {
	t.Helper()
	list, err := env.repo.GetElectionList(context.Background(), env.categoryID)
	if err != nil {
		t.Fatalf("GetElectionList failed: %v", err)
	}
	for i := range list {
		if list[i].TopicID == topicID {
			return &list[i]
		}
	}
	return nil
}

func notificationTypes(t *testing.T, repo repository.FullRepository, userID int64) map[string]int {
	t.Helper()
	list, err := repo.ListNotifications(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	types := make(map[string]int)
	for _, n := range list {
		types[n.Type]++
	}
	return types
}

func intPtr(n int) *int {
	return &n
}

type mockBroadcaster struct {
	mu        sync.Mutex
	refreshed []int64
	lists     map[int64][]models.ElectionListEntry
}

func (m *mockBroadcaster) BroadcastTopicRefresh(topicID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, topicID)
}

func (m *mockBroadcaster) BroadcastElectionList(categoryID int64, list []models.ElectionListEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lists == nil {
		m.lists = make(map[int64][]models.ElectionListEntry)
	}
	m.lists[categoryID] = list
}

func (m *mockBroadcaster) refreshCount(topicID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.refreshed {
		if id == topicID {
			n++
		}
	}
	return n
}
