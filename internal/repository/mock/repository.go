package mock

import (
	"context"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// Injected errors also apply inside InTx, so a failure can be placed in the
// middle of a transactional operation to check that it rolls back.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.UpdatePostError = errors.New("database error")
//	svc := services.NewElectionService(log, mockRepo, ...)
//	_, err := svc.SetStatus(ctx, topicID, models.StatusPoll, services.StatusOptions{})
//	// err will now contain the injected error and nothing was committed
type Repository struct {
	repository.FullRepository

	InTxError error

	// ===== User Errors =====
	GetUserError           error
	GetUserByUsernameError error
	GetUsersError          error
	ListModeratorsError    error

	// ===== Category Errors =====
	GetCategoryError      error
	GetElectionListError  error
	SaveElectionListError error

	// ===== Topic Errors =====
	CreateTopicError      error
	UpdateTopicTitleError error
	GetElectionError      error
	SaveElectionError     error
	ListElectionsError    error

	// ===== Post Errors =====
	CreatePostError             error
	GetFirstPostError           error
	UpdatePostError             error
	LatestStatementPostError    error
	SetPollStateError           error
	SetNominationStatementError error

	// ===== Notification Errors =====
	CreateNotificationError error

	// ===== Job Errors =====
	EnqueueJobError   error
	CancelJobsError   error
	ClaimDueJobsError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// InTx runs fn inside the real transaction, handing it a copy of this mock
// bound to the transaction so injected errors keep firing.
func (m *Repository) InTx(ctx context.Context, fn func(tx repository.FullRepository) error) error {
	if m.InTxError != nil {
		return m.InTxError
	}
	return m.FullRepository.InTx(ctx, func(tx repository.FullRepository) error {
		bound := *m
		bound.FullRepository = tx
		return fn(&bound)
	})
}

// ===== User Methods =====

func (m *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	return m.FullRepository.GetUser(ctx, id)
}

func (m *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetUserByUsernameError != nil {
		return nil, m.GetUserByUsernameError
	}
	return m.FullRepository.GetUserByUsername(ctx, username)
}

func (m *Repository) GetUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	if m.GetUsersError != nil {
		return nil, m.GetUsersError
	}
	return m.FullRepository.GetUsers(ctx, ids)
}

func (m *Repository) ListModerators(ctx context.Context) ([]models.User, error) {
	if m.ListModeratorsError != nil {
		return nil, m.ListModeratorsError
	}
	return m.FullRepository.ListModerators(ctx)
}

// ===== Category Methods =====

func (m *Repository) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	if m.GetCategoryError != nil {
		return nil, m.GetCategoryError
	}
	return m.FullRepository.GetCategory(ctx, id)
}

func (m *Repository) GetElectionList(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error) {
	if m.GetElectionListError != nil {
		return nil, m.GetElectionListError
	}
	return m.FullRepository.GetElectionList(ctx, categoryID)
}

func (m *Repository) SaveElectionList(ctx context.Context, categoryID int64, list []models.ElectionListEntry) error {
	if m.SaveElectionListError != nil {
		return m.SaveElectionListError
	}
	return m.FullRepository.SaveElectionList(ctx, categoryID, list)
}

// ===== Topic Methods =====

func (m *Repository) CreateTopic(ctx context.Context, t models.Topic) (int64, error) {
	if m.CreateTopicError != nil {
		return 0, m.CreateTopicError
	}
	return m.FullRepository.CreateTopic(ctx, t)
}

func (m *Repository) UpdateTopicTitle(ctx context.Context, id int64, title, slug string) error {
	if m.UpdateTopicTitleError != nil {
		return m.UpdateTopicTitleError
	}
	return m.FullRepository.UpdateTopicTitle(ctx, id, title, slug)
}

func (m *Repository) GetElection(ctx context.Context, topicID int64) (*models.Election, error) {
	if m.GetElectionError != nil {
		return nil, m.GetElectionError
	}
	return m.FullRepository.GetElection(ctx, topicID)
}

func (m *Repository) SaveElection(ctx context.Context, e *models.Election) error {
	if m.SaveElectionError != nil {
		return m.SaveElectionError
	}
	return m.FullRepository.SaveElection(ctx, e)
}

func (m *Repository) ListElections(ctx context.Context, categoryID int64, statuses []models.ElectionStatus) ([]models.Election, error) {
	if m.ListElectionsError != nil {
		return nil, m.ListElectionsError
	}
	return m.FullRepository.ListElections(ctx, categoryID, statuses)
}

// ===== Post Methods =====

func (m *Repository) CreatePost(ctx context.Context, p models.Post) (int64, error) {
	if m.CreatePostError != nil {
		return 0, m.CreatePostError
	}
	return m.FullRepository.CreatePost(ctx, p)
}

func (m *Repository) GetFirstPost(ctx context.Context, topicID int64) (*models.Post, error) {
	if m.GetFirstPostError != nil {
		return nil, m.GetFirstPostError
	}
	return m.FullRepository.GetFirstPost(ctx, topicID)
}

func (m *Repository) UpdatePost(ctx context.Context, id int64, raw, cooked string, skipRevision bool) error {
	if m.UpdatePostError != nil {
		return m.UpdatePostError
	}
	return m.FullRepository.UpdatePost(ctx, id, raw, cooked, skipRevision)
}

func (m *Repository) LatestStatementPost(ctx context.Context, topicID, userID int64) (*models.Post, error) {
	if m.LatestStatementPostError != nil {
		return nil, m.LatestStatementPostError
	}
	return m.FullRepository.LatestStatementPost(ctx, topicID, userID)
}

func (m *Repository) SetPollState(ctx context.Context, postID int64, status string, voters int) error {
	if m.SetPollStateError != nil {
		return m.SetPollStateError
	}
	return m.FullRepository.SetPollState(ctx, postID, status, voters)
}

func (m *Repository) SetNominationStatement(ctx context.Context, id int64, statement bool) error {
	if m.SetNominationStatementError != nil {
		return m.SetNominationStatementError
	}
	return m.FullRepository.SetNominationStatement(ctx, id, statement)
}

// ===== Notification Methods =====

func (m *Repository) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	if m.CreateNotificationError != nil {
		return 0, m.CreateNotificationError
	}
	return m.FullRepository.CreateNotification(ctx, n)
}

// ===== Job Methods =====

func (m *Repository) EnqueueJob(ctx context.Context, job models.Job) error {
	if m.EnqueueJobError != nil {
		return m.EnqueueJobError
	}
	return m.FullRepository.EnqueueJob(ctx, job)
}

func (m *Repository) CancelJobs(ctx context.Context, kind models.JobKind, topicID int64) (int64, error) {
	if m.CancelJobsError != nil {
		return 0, m.CancelJobsError
	}
	return m.FullRepository.CancelJobs(ctx, kind, topicID)
}

func (m *Repository) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	if m.ClaimDueJobsError != nil {
		return nil, m.ClaimDueJobsError
	}
	return m.FullRepository.ClaimDueJobs(ctx, now, limit)
}
