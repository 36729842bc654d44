package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/abrezinsky/forumelections/internal/errors"
	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/markup"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// SystemUsername owns election topics and their first posts
const SystemUsername = "system"

// MinPositionLength is the shortest accepted position name
const MinPositionLength = 3

// ElectionConfig holds the site settings the election workflow reads
type ElectionConfig struct {
	Enabled bool
}

// StatusOptions adjusts a status change
type StatusOptions struct {
	// Unattended marks changes made by jobs and poll callbacks. A failed
	// post rebuild is reported to the election's moderators.
	Unattended bool
}

// StatusTransition describes an accepted status change
type StatusTransition struct {
	From        models.ElectionStatus `json:"from"`
	To          models.ElectionStatus `json:"status"`
	PollToggled bool                  `json:"poll_toggled"`
}

// MessageType selects one of the phase messages
type MessageType string

const (
	MessageNomination MessageType = "nomination"
	MessagePoll       MessageType = "poll"
	MessageClosedPoll MessageType = "closed_poll"
)

func (t MessageType) status() (models.ElectionStatus, bool) {
	switch t {
	case MessageNomination:
		return models.StatusNomination, true
	case MessagePoll:
		return models.StatusPoll, true
	case MessageClosedPoll:
		return models.StatusClosedPoll, true
	}
	return 0, false
}

// CreateElection is a request to turn a new topic into an election
type CreateElection struct {
	CategoryID              int64           `json:"category_id"`
	Position                string          `json:"position"`
	NominationMessage       string          `json:"nomination_message"`
	PollMessage             string          `json:"poll_message"`
	ClosedPollMessage       string          `json:"closed_poll_message"`
	SelfNominationAllowed   bool            `json:"self_nomination_allowed"`
	StatusBanner            bool            `json:"status_banner"`
	StatusBannerResultHours int             `json:"status_banner_result_hours"`
	PollOpen                *PollTimeConfig `json:"poll_open,omitempty"`
	PollClose               *PollTimeConfig `json:"poll_close,omitempty"`
}

// ElectionView is an election as presented to clients
type ElectionView struct {
	models.Election
	URL          string                    `json:"url"`
	NomineeUsers []models.User             `json:"nominee_users"`
	Usernames    []string                  `json:"usernames"`
	FirstPost    *models.Post              `json:"first_post,omitempty"`
	Jobs         []models.Job              `json:"scheduled_jobs"`
	ListEntry    *models.ElectionListEntry `json:"list_entry,omitempty"`
}

// ElectionService runs the election state machine and the election
// settings
type ElectionService struct {
	log         logger.Logger
	repo        repository.FullRepository
	cfg         ElectionConfig
	posts       *ElectionPostService
	lists       *CategoryListService
	times       *ElectionTime
	notifier    *Notifier
	broadcaster Broadcaster
}

// NewElectionService creates a new ElectionService
func NewElectionService(log logger.Logger, repo repository.FullRepository, cfg ElectionConfig, posts *ElectionPostService, lists *CategoryListService, times *ElectionTime, notifier *Notifier) *ElectionService {
	return &ElectionService{
		log:      log,
		repo:     repo,
		cfg:      cfg,
		posts:    posts,
		lists:    lists,
		times:    times,
		notifier: notifier,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *ElectionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Enabled reports whether the election workflow is switched on
func (s *ElectionService) Enabled() bool {
	return s.cfg.Enabled
}

// Get returns an election with its nominees, first post and pending jobs
func (s *ElectionService) Get(ctx context.Context, topicID int64) (*ElectionView, error) {
	e, err := loadElection(ctx, s.repo, topicID)
	if err != nil {
		return nil, err
	}

	users, err := s.repo.GetUsers(ctx, e.Nominations)
	if err != nil {
		return nil, err
	}
	usernames := make([]string, 0, len(users))
	for _, u := range users {
		usernames = append(usernames, u.Username)
	}

	view := &ElectionView{Election: *e, URL: e.URL(), NomineeUsers: users, Usernames: usernames}

	post, err := s.repo.GetFirstPost(ctx, topicID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	view.FirstPost = post

	if view.Jobs, err = s.repo.ListJobs(ctx, topicID); err != nil {
		return nil, err
	}

	list, err := s.repo.GetElectionList(ctx, e.CategoryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	for i := range list {
		if list[i].TopicID == topicID {
			view.ListEntry = &list[i]
		}
	}
	return view, nil
}

// Create opens a new election topic in an elections category
func (s *ElectionService) Create(ctx context.Context, user *models.User, req CreateElection) (*models.Election, error) {
	position := strings.TrimSpace(req.Position)
	if utf8.RuneCountInString(position) < MinPositionLength {
		return nil, ErrPositionTooShort
	}
	if req.StatusBannerResultHours < 0 {
		return nil, ErrInvalidResultHours
	}

	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	if !category.ForElections {
		return nil, ErrCategoryNotEnabled
	}

	owner := user
	if system, err := s.repo.GetUserByUsername(ctx, SystemUsername); err == nil {
		owner = system
	}
	if owner == nil {
		return nil, ErrNotAuthorized
	}

	var created *models.Election
	fx := newEffects(s.broadcaster)
	err = s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		title := ElectionTitle(position)
		topicID, err := tx.CreateTopic(ctx, models.Topic{
			CategoryID: category.ID,
			Title:      title,
			Slug:       Slugify(title),
			UserID:     owner.ID,
			Subtype:    "election",
		})
		if err != nil {
			return err
		}

		topic, err := tx.GetTopic(ctx, topicID)
		if err != nil {
			return err
		}
		created = &models.Election{
			TopicID:                 topic.ID,
			CategoryID:              topic.CategoryID,
			Title:                   topic.Title,
			Slug:                    topic.Slug,
			Status:                  models.StatusNomination,
			Position:                position,
			SelfNominationAllowed:   req.SelfNominationAllowed,
			Nominations:             []int64{},
			Statements:              []models.NominationStatement{},
			NominationMessage:       req.NominationMessage,
			PollMessage:             req.PollMessage,
			ClosedPollMessage:       req.ClosedPollMessage,
			StatusBanner:            req.StatusBanner,
			StatusBannerResultHours: req.StatusBannerResultHours,
		}

		if req.PollOpen != nil {
			open := *req.PollOpen
			open.Side = PollOpen.String()
			if err := s.applyTiming(created, open); err != nil {
				return err
			}
		}
		if req.PollClose != nil {
			closing := *req.PollClose
			closing.Side = PollClose.String()
			if err := s.applyTiming(created, closing); err != nil {
				return err
			}
		}

		if err := tx.SaveElection(ctx, created); err != nil {
			return err
		}

		raw, _ := RenderElectionPost(PostView{Status: models.StatusNomination, Message: created.NominationMessage})
		if _, err := tx.CreatePost(ctx, models.Post{TopicID: topicID, UserID: owner.ID, Raw: raw, Cooked: markup.Cook(raw)}); err != nil {
			return err
		}

		if err := s.lists.Update(ctx, tx, fx, created, ListUpdate{}); err != nil {
			return err
		}
		if created.PollOpen.Enabled && !created.PollOpen.After {
			return s.times.Schedule(ctx, tx, fx, created, PollOpen)
		}
		return nil
	})
	if err != nil {
		if apperrors.KeyOf(err) != "" {
			return nil, err
		}
		return nil, ErrCreateFailed.Wrapf(err)
	}

	fx.run(ctx)
	s.log.Info("Election created", "topic_id", created.TopicID, "position", created.Position, "owner_id", owner.ID)
	return created, nil
}

// applyTiming validates and copies a poll timing request onto a new
// election
func (s *ElectionService) applyTiming(e *models.Election, cfg PollTimeConfig) error {
	side, at, err := s.times.ValidatePollTime(e, cfg)
	if err != nil {
		return err
	}
	timing := pollSides[side].timing(e)
	timing.Enabled = cfg.Enabled
	timing.After = cfg.After
	timing.Time = at
	if cfg.Hours != nil {
		timing.Hours = *cfg.Hours
	}
	if cfg.Threshold != nil {
		timing.Threshold = *cfg.Threshold
	}
	return nil
}

// StartPoll moves an election from nominations to the poll
func (s *ElectionService) StartPoll(ctx context.Context, topicID int64) (*StatusTransition, error) {
	return s.SetStatus(ctx, topicID, models.StatusPoll, StatusOptions{})
}

// SetStatus moves an election to a new status and runs the side effects of
// the transition in one transaction: the post rebuild, the poll state, the
// category list and the poll schedule. Clients and nominees hear about it
// after commit.
func (s *ElectionService) SetStatus(ctx context.Context, topicID int64, status models.ElectionStatus, opts StatusOptions) (*StatusTransition, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		tr       *StatusTransition
		election *models.Election
	)
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		e, err := loadElection(ctx, tx, topicID)
		if err != nil {
			return err
		}
		election = e
		tr, err = s.transition(ctx, tx, fx, e, status)
		return err
	})
	if err != nil {
		if opts.Unattended && election != nil && errors.Is(err, ErrSetStatusFailed) {
			s.log.Error("Unattended status change failed", "topic_id", topicID, "status", status, "error", err)
			s.notifier.MessageModerators(ctx, topicID, election.CategoryID, NotificationErrorUpdatingPost, err)
		}
		return nil, err
	}

	fx.run(ctx)
	s.log.Info("Election status changed", "topic_id", topicID, "from", tr.From, "to", tr.To, "unattended", opts.Unattended)
	return tr, nil
}

func (s *ElectionService) transition(ctx context.Context, tx repository.FullRepository, fx *effects, e *models.Election, status models.ElectionStatus) (*StatusTransition, error) {
	from := e.Status
	if from == status {
		return nil, ErrStatusNotChanged
	}
	if status.IsPoll() && len(e.Nominations) < 2 {
		return nil, ErrInsufficientNominees
	}

	e.Status = status
	if err := tx.SaveElection(ctx, e); err != nil {
		return nil, ErrSetStatusFailed.Wrapf(err)
	}
	if _, err := s.posts.Rebuild(ctx, tx, e); err != nil {
		return nil, ErrSetStatusFailed.Wrapf(err)
	}

	tr := &StatusTransition{From: from, To: status}
	if status.IsPoll() {
		toggled, err := s.setPollState(ctx, tx, e.TopicID, status)
		if err != nil {
			return nil, ErrSetStatusFailed.Wrapf(err)
		}
		tr.PollToggled = toggled
	}

	if err := s.lists.Update(ctx, tx, fx, e, ListUpdate{Status: &status}); err != nil {
		return nil, err
	}

	switch status {
	case models.StatusPoll:
		if err := s.times.Cancel(ctx, tx, fx, e, PollOpen); err != nil {
			return nil, err
		}
		closing := e.PollClose
		switch {
		case closing.Enabled && closing.After && closing.Threshold == 0:
			now, err := s.times.SetAfter(ctx, tx, fx, e, PollClose)
			if err != nil {
				return nil, err
			}
			if now {
				s.fireLater(fx, e.TopicID, PollClose)
			}
		case closing.Enabled && !closing.After && closing.Time != nil && !closing.Scheduled:
			// A fixed close that has already passed stays unscheduled
			if !closing.Time.After(s.times.now()) {
				break
			}
			if err := s.times.Schedule(ctx, tx, fx, e, PollClose); err != nil {
				return nil, err
			}
		}
	case models.StatusClosedPoll:
		if err := s.times.Cancel(ctx, tx, fx, e, PollOpen); err != nil {
			return nil, err
		}
		if err := s.times.Cancel(ctx, tx, fx, e, PollClose); err != nil {
			return nil, err
		}
	case models.StatusNomination:
		if err := s.times.Cancel(ctx, tx, fx, e, PollClose); err != nil {
			return nil, err
		}
	}

	snapshot := *e
	fx.refresh(e.TopicID)
	fx.add(func(ctx context.Context) {
		s.notifier.NotifyStatusChange(ctx, snapshot, *tr)
	})
	return tr, nil
}

// setPollState opens or closes the poll on the first post and reports
// whether its state changed
func (s *ElectionService) setPollState(ctx context.Context, tx repository.PostRepository, topicID int64, status models.ElectionStatus) (bool, error) {
	post, err := tx.GetFirstPost(ctx, topicID)
	if err != nil {
		return false, err
	}
	state := models.PollStateOpen
	if status == models.StatusClosedPoll {
		state = models.PollStateClosed
	}
	if post.PollStatus == state {
		return false, nil
	}
	return true, tx.SetPollState(ctx, post.ID, state, post.PollVoters)
}

// fireLater runs the side's transition once the current transaction has
// committed
func (s *ElectionService) fireLater(fx *effects, topicID int64, side PollSide) {
	fx.add(func(ctx context.Context) {
		if err := s.RunPollJob(ctx, side, topicID); err != nil {
			s.log.Warn("Immediate poll "+side.String()+" failed", "topic_id", topicID, "error", err)
		}
	})
}

// RunPollJob performs an automatic poll open or close. The election is
// checked again before acting and any failure is reported to moderators.
func (s *ElectionService) RunPollJob(ctx context.Context, side PollSide, topicID int64) error {
	info, ok := pollSides[side]
	if !ok {
		return ErrInvalidPollSide
	}

	var (
		categoryID int64
		reported   bool
	)
	err := func() error {
		if !s.cfg.Enabled {
			return ErrElectionsDisabled
		}
		e, err := loadElection(ctx, s.repo, topicID)
		if err != nil {
			return err
		}
		categoryID = e.CategoryID
		if e.Closed {
			return ErrTopicInaccessible
		}
		if side == PollOpen && len(e.Nominations) < 2 {
			return ErrInsufficientNominees
		}
		if e.Status != info.from {
			return ErrInvalidStatus
		}
		_, err = s.SetStatus(ctx, topicID, info.target, StatusOptions{Unattended: true})
		// SetStatus has already told moderators about a failed rebuild
		reported = errors.Is(err, ErrSetStatusFailed)
		return err
	}()
	if err != nil {
		s.log.Warn("Poll job failed", "side", info.name, "topic_id", topicID, "error", err)
		if !reported {
			s.notifier.MessageModerators(ctx, topicID, categoryID, info.failed, err)
		}
		return err
	}
	return nil
}

// SetSelfNominationAllowed turns self nomination on or off
func (s *ElectionService) SetSelfNominationAllowed(ctx context.Context, topicID int64, allowed bool) (bool, error) {
	err := s.update(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) error {
		if e.SelfNominationAllowed == allowed {
			return ErrSelfNominationStateNotChanged
		}
		e.SelfNominationAllowed = allowed
		return tx.SaveElection(ctx, e)
	})
	return allowed, err
}

// SetStatusBanner turns the category banner entry on or off
func (s *ElectionService) SetStatusBanner(ctx context.Context, topicID int64, banner bool) (bool, error) {
	err := s.update(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) error {
		if e.StatusBanner == banner {
			return ErrStatusBannerNotChanged
		}
		e.StatusBanner = banner
		if err := tx.SaveElection(ctx, e); err != nil {
			return err
		}
		return s.lists.Update(ctx, tx, fx, e, ListUpdate{Banner: &banner})
	})
	return banner, err
}

// SetStatusBannerResultHours sets how long a closed election stays listed
func (s *ElectionService) SetStatusBannerResultHours(ctx context.Context, topicID int64, hours int) (int, error) {
	if hours < 0 {
		return 0, ErrInvalidResultHours
	}
	err := s.update(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) error {
		if e.StatusBannerResultHours == hours {
			return ErrResultHoursNotChanged
		}
		e.StatusBannerResultHours = hours
		return tx.SaveElection(ctx, e)
	})
	return hours, err
}

// SetMessage stores a phase message. The election post is rebuilt when the
// message belongs to the current phase.
func (s *ElectionService) SetMessage(ctx context.Context, topicID int64, kind MessageType, message string) (string, error) {
	status, ok := kind.status()
	if !ok {
		return "", ErrInvalidMessageType
	}

	err := s.update(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) error {
		switch kind {
		case MessageNomination:
			e.NominationMessage = message
		case MessagePoll:
			e.PollMessage = message
		case MessageClosedPoll:
			e.ClosedPollMessage = message
		}
		if err := tx.SaveElection(ctx, e); err != nil {
			return ErrSetMessageFailed.Wrapf(err)
		}
		if e.Status == status {
			if _, err := s.posts.Rebuild(ctx, tx, e); err != nil {
				return ErrSetMessageFailed.Wrapf(err)
			}
		}
		return nil
	})
	return message, err
}

// SetPosition renames the election and its topic
func (s *ElectionService) SetPosition(ctx context.Context, topicID int64, position string) (string, error) {
	position = strings.TrimSpace(position)
	if utf8.RuneCountInString(position) < MinPositionLength {
		return "", ErrPositionTooShort
	}

	err := s.update(ctx, topicID, func(tx repository.FullRepository, fx *effects, e *models.Election) error {
		title := ElectionTitle(position)
		if err := tx.UpdateTopicTitle(ctx, e.TopicID, title, Slugify(title)); err != nil {
			return ErrSetPositionFailed.Wrapf(err)
		}
		e.Position = position
		e.Title = title
		e.Slug = Slugify(title)
		if err := tx.SaveElection(ctx, e); err != nil {
			return ErrSetPositionFailed.Wrapf(err)
		}
		return s.lists.Update(ctx, tx, fx, e, ListUpdate{})
	})
	return position, err
}

// update loads an election inside a transaction, applies fn and refreshes
// clients after commit
func (s *ElectionService) update(ctx context.Context, topicID int64, fn func(tx repository.FullRepository, fx *effects, e *models.Election) error) error {
	fx := newEffects(s.broadcaster)
	err := s.repo.InTx(ctx, func(tx repository.FullRepository) error {
		e, err := loadElection(ctx, tx, topicID)
		if err != nil {
			return err
		}
		return fn(tx, fx, e)
	})
	if err != nil {
		return err
	}
	fx.refresh(topicID)
	fx.run(ctx)
	return nil
}

// ElectionTitle is the topic title of an election for position
func ElectionTitle(position string) string {
	r, size := utf8.DecodeRuneInString(position)
	return strings.ToUpper(string(r)) + position[size:] + " Election"
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its words with hyphens
func Slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "topic"
	}
	return slug
}
