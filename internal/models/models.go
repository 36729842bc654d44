package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ElectionStatus is the phase an election topic is in
type ElectionStatus int

const (
	StatusNomination ElectionStatus = 1
	StatusPoll       ElectionStatus = 2
	StatusClosedPoll ElectionStatus = 3
)

// Valid reports whether s is one of the known statuses
func (s ElectionStatus) Valid() bool {
	return s >= StatusNomination && s <= StatusClosedPoll
}

// IsPoll reports whether the first post carries a poll in this status
func (s ElectionStatus) IsPoll() bool {
	return s == StatusPoll || s == StatusClosedPoll
}

func (s ElectionStatus) String() string {
	switch s {
	case StatusNomination:
		return "nomination"
	case StatusPoll:
		return "poll"
	case StatusClosedPoll:
		return "closed_poll"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Poll states stored on the first post
const (
	PollStateOpen   = "open"
	PollStateClosed = "closed"
)

// User is the subset of a forum account the election workflow needs
type User struct {
	ID                  int64  `json:"id"`
	Username            string `json:"username"`
	Name                string `json:"name,omitempty"`
	AvatarTemplate      string `json:"avatar_template,omitempty"`
	TrustLevel          int    `json:"trust_level"`
	Admin               bool   `json:"admin"`
	Moderator           bool   `json:"moderator"`
	Anonymous           bool   `json:"anonymous,omitempty"`
	ModeratorCategoryID *int64 `json:"moderator_category_id,omitempty"`
}

// Staff reports whether the user is an admin or a moderator
func (u *User) Staff() bool {
	return u != nil && (u.Admin || u.Moderator)
}

// AvatarURL expands the avatar template for the given pixel size
func (u *User) AvatarURL(size int) string {
	if u.AvatarTemplate == "" {
		return fmt.Sprintf("/letter_avatar/%s/%d.png", u.Username, size)
	}
	return strings.ReplaceAll(u.AvatarTemplate, "{size}", strconv.Itoa(size))
}

// Category is a forum category
type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ForElections bool   `json:"for_elections"`
}

// Topic is a forum topic
type Topic struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	UserID     int64     `json:"user_id"`
	Subtype    string    `json:"subtype,omitempty"`
	Closed     bool      `json:"closed"`
	CreatedAt  time.Time `json:"created_at"`
}

// RelativeURL is the topic's path on the forum
func (t *Topic) RelativeURL() string {
	return fmt.Sprintf("/t/%s/%d", t.Slug, t.ID)
}

// Post is a forum post. PostNumber 1 is the topic's first post.
type Post struct {
	ID                  int64      `json:"id"`
	TopicID             int64      `json:"topic_id"`
	PostNumber          int        `json:"post_number"`
	UserID              int64      `json:"user_id"`
	Raw                 string     `json:"raw"`
	Cooked              string     `json:"cooked"`
	NominationStatement bool       `json:"nomination_statement"`
	Version             int        `json:"version"`
	PollStatus          string     `json:"poll_status,omitempty"`
	PollVoters          int        `json:"poll_voters"`
	CreatedAt           time.Time  `json:"created_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

// URL is the short link to the post
func (p *Post) URL() string {
	return fmt.Sprintf("/p/%d", p.ID)
}

// Deleted reports whether the post is soft-deleted
func (p *Post) Deleted() bool {
	return p.DeletedAt != nil
}

// NominationStatement links a nominee to the post holding their statement
type NominationStatement struct {
	PostID  int64  `json:"post_id"`
	UserID  int64  `json:"user_id"`
	Excerpt string `json:"excerpt"`
}

// PollTiming configures automatic opening or closing of the poll.
//
// With After set the transition happens Hours after Threshold is crossed
// (nominations for open, voters for close; a zero close threshold means
// Hours after the poll opens). Otherwise it happens at Time.
type PollTiming struct {
	Enabled   bool       `json:"enabled"`
	After     bool       `json:"after"`
	Hours     int        `json:"hours"`
	Threshold int        `json:"threshold"`
	Time      *time.Time `json:"time,omitempty"`
	Scheduled bool       `json:"scheduled"`
}

// Election is a topic augmented with election state
type Election struct {
	TopicID    int64  `json:"topic_id"`
	CategoryID int64  `json:"category_id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Closed     bool   `json:"closed"`

	Status                  ElectionStatus        `json:"status"`
	Position                string                `json:"position"`
	SelfNominationAllowed   bool                  `json:"self_nomination_allowed"`
	Nominations             []int64               `json:"nominations"`
	Statements              []NominationStatement `json:"nomination_statements"`
	NominationMessage       string                `json:"nomination_message"`
	PollMessage             string                `json:"poll_message"`
	ClosedPollMessage       string                `json:"closed_poll_message"`
	StatusBanner            bool                  `json:"status_banner"`
	StatusBannerResultHours int                   `json:"status_banner_result_hours"`
	PollOpen                PollTiming            `json:"poll_open"`
	PollClose               PollTiming            `json:"poll_close"`
	PollVoters              int                   `json:"poll_voters"`
}

// URL is the election topic's path
func (e *Election) URL() string {
	return fmt.Sprintf("/t/%s/%d", e.Slug, e.TopicID)
}

// IsNominee reports whether userID is on the roster
func (e *Election) IsNominee(userID int64) bool {
	for _, id := range e.Nominations {
		if id == userID {
			return true
		}
	}
	return false
}

// Message returns the configured message for the given status
func (e *Election) Message(status ElectionStatus) string {
	switch status {
	case StatusPoll:
		return e.PollMessage
	case StatusClosedPoll:
		return e.ClosedPollMessage
	default:
		return e.NominationMessage
	}
}

// ScheduledTime returns the pending automatic transition time, if any
func (e *Election) ScheduledTime() *time.Time {
	if e.PollOpen.Scheduled && e.PollOpen.Time != nil {
		return e.PollOpen.Time
	}
	if e.PollClose.Scheduled && e.PollClose.Time != nil {
		return e.PollClose.Time
	}
	return nil
}

// ElectionListEntry is the category banner summary of one election
type ElectionListEntry struct {
	TopicID  int64          `json:"topic_id"`
	URL      string         `json:"topic_url"`
	Status   ElectionStatus `json:"status"`
	Position string         `json:"position"`
	Banner   bool           `json:"banner"`
	Time     *time.Time     `json:"time,omitempty"`
}

// Notification is a message delivered to a user's inbox
type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	TopicID   int64          `json:"topic_id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobKind identifies a scheduled job handler
type JobKind string

const (
	JobOpenPoll               JobKind = "election_open_poll"
	JobClosePoll              JobKind = "election_close_poll"
	JobRemoveFromCategoryList JobKind = "election_remove_from_category_list"
)

// Job is a persisted unit of deferred work
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	TopicID    int64     `json:"topic_id"`
	CategoryID int64     `json:"category_id,omitempty"`
	RunAt      time.Time `json:"run_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	TopicID int64       `json:"topic_id,omitempty"`
	Payload interface{} `json:"payload"`
}
