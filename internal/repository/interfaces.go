package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
)

// UserRepository defines user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, u models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsers(ctx context.Context, ids []int64) ([]models.User, error)
	ListModerators(ctx context.Context) ([]models.User, error)
}

// CategoryRepository defines category data operations
type CategoryRepository interface {
	CreateCategory(ctx context.Context, c models.Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	GetElectionList(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error)
	SaveElectionList(ctx context.Context, categoryID int64, list []models.ElectionListEntry) error
}

// TopicRepository defines topic and election state operations
type TopicRepository interface {
	CreateTopic(ctx context.Context, t models.Topic) (int64, error)
	GetTopic(ctx context.Context, id int64) (*models.Topic, error)
	UpdateTopicTitle(ctx context.Context, id int64, title, slug string) error
	SetTopicClosed(ctx context.Context, id int64, closed bool) error
	GetElection(ctx context.Context, topicID int64) (*models.Election, error)
	SaveElection(ctx context.Context, e *models.Election) error
	ListElections(ctx context.Context, categoryID int64, statuses []models.ElectionStatus) ([]models.Election, error)
}

// PostRepository defines post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, p models.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	GetFirstPost(ctx context.Context, topicID int64) (*models.Post, error)
	UpdatePost(ctx context.Context, id int64, raw, cooked string, skipRevision bool) error
	SetPostDeleted(ctx context.Context, id int64, deleted bool) error
	SetNominationStatement(ctx context.Context, id int64, statement bool) error
	LatestStatementPost(ctx context.Context, topicID, userID int64) (*models.Post, error)
	SetPollState(ctx context.Context, postID int64, status string, voters int) error
	CountRevisions(ctx context.Context, postID int64) (int, error)
}

// NotificationRepository defines notification data operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
}

// JobRepository defines scheduled job operations
type JobRepository interface {
	EnqueueJob(ctx context.Context, job models.Job) error
	CancelJobs(ctx context.Context, kind models.JobKind, topicID int64) (int64, error)
	ListJobs(ctx context.Context, topicID int64) ([]models.Job, error)
	ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	UserRepository
	CategoryRepository
	TopicRepository
	PostRepository
	NotificationRepository
	JobRepository
	InTx(ctx context.Context, fn func(tx FullRepository) error) error
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
