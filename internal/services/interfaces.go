package services

import (
	"context"

	"github.com/abrezinsky/forumelections/internal/models"
)

// ElectionServicer defines the interface for election lifecycle operations
type ElectionServicer interface {
	Enabled() bool
	Get(ctx context.Context, topicID int64) (*ElectionView, error)
	Create(ctx context.Context, user *models.User, req CreateElection) (*models.Election, error)
	StartPoll(ctx context.Context, topicID int64) (*StatusTransition, error)
	SetStatus(ctx context.Context, topicID int64, status models.ElectionStatus, opts StatusOptions) (*StatusTransition, error)
	SetSelfNominationAllowed(ctx context.Context, topicID int64, allowed bool) (bool, error)
	SetStatusBanner(ctx context.Context, topicID int64, banner bool) (bool, error)
	SetStatusBannerResultHours(ctx context.Context, topicID int64, hours int) (int, error)
	SetMessage(ctx context.Context, topicID int64, kind MessageType, message string) (string, error)
	SetPosition(ctx context.Context, topicID int64, position string) (string, error)
	RunPollJob(ctx context.Context, side PollSide, topicID int64) error
	ShareQR(ctx context.Context, topicID int64, baseURL string) ([]byte, error)
	SetBroadcaster(b Broadcaster)
}

// NominationServicer defines the interface for nominee roster operations
type NominationServicer interface {
	SetRoster(ctx context.Context, topicID int64, userIDs []int64) (*RosterChange, error)
	SetByUsername(ctx context.Context, topicID int64, usernames []string) (*RosterChange, error)
	AddSelf(ctx context.Context, topicID int64, user *models.User) (*RosterChange, error)
	RemoveSelf(ctx context.Context, topicID int64, user *models.User) (*RosterChange, error)
	SetBroadcaster(b Broadcaster)
}

// PollTimer defines the interface for automatic poll scheduling
type PollTimer interface {
	SetPollTime(ctx context.Context, topicID int64, cfg PollTimeConfig) error
	SetBroadcaster(b Broadcaster)
}

// CategoryListServicer defines the interface for category election lists
type CategoryListServicer interface {
	Remove(ctx context.Context, categoryID, topicID int64) error
	Banner(ctx context.Context, categoryID int64) ([]models.ElectionListEntry, error)
	CategoryList(ctx context.Context, categoryID int64) ([]ElectionSummary, error)
	SetBroadcaster(b Broadcaster)
}

// PostServicer defines the interface for reply operations
type PostServicer interface {
	Create(ctx context.Context, user *models.User, req NewPost) (*models.Post, error)
	Edit(ctx context.Context, user *models.User, postID int64, req PostEdit) (*models.Post, error)
	Destroy(ctx context.Context, user *models.User, postID int64) error
	Recover(ctx context.Context, user *models.User, postID int64) (*models.Post, error)
	SetBroadcaster(b Broadcaster)
}

// PollServicer defines the interface for poll callbacks
type PollServicer interface {
	StatusChanged(ctx context.Context, topicID int64, state string) (*StatusTransition, error)
	VotersChanged(ctx context.Context, topicID int64, voters int) error
	SetBroadcaster(b Broadcaster)
}

// NotificationLister defines the interface for reading notifications
type NotificationLister interface {
	List(ctx context.Context, userID int64) ([]models.Notification, error)
}

// Ensure concrete types implement interfaces
var (
	_ ElectionServicer     = (*ElectionService)(nil)
	_ NominationServicer   = (*NominationService)(nil)
	_ PollTimer            = (*ElectionTime)(nil)
	_ CategoryListServicer = (*CategoryListService)(nil)
	_ PostServicer         = (*PostService)(nil)
	_ PollServicer         = (*PollService)(nil)
	_ NotificationLister   = (*Notifier)(nil)
)
