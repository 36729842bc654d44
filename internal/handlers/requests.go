package handlers

import "github.com/abrezinsky/forumelections/internal/services"

// TopicRequest names the election an admin action applies to
type TopicRequest struct {
	TopicID int64 `json:"topic_id"`
}

// SetStatusRequest represents a request to move an election to a status
type SetStatusRequest struct {
	TopicID int64 `json:"topic_id"`
	Status  int   `json:"status"`
}

// BoolValueRequest carries a boolean election setting
type BoolValueRequest struct {
	TopicID int64 `json:"topic_id"`
	Value   *bool `json:"value"`
}

// IntValueRequest carries an integer election setting
type IntValueRequest struct {
	TopicID int64 `json:"topic_id"`
	Value   *int  `json:"value"`
}

// MessageRequest represents a request to set one of the phase messages.
// Type is ignored on the routes that name the phase.
type MessageRequest struct {
	TopicID int64  `json:"topic_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PositionRequest represents a request to rename the position
type PositionRequest struct {
	TopicID  int64  `json:"topic_id"`
	Position string `json:"position"`
}

// PollTimeRequest represents a request to configure automatic poll opening
// or closing
type PollTimeRequest struct {
	TopicID int64 `json:"topic_id"`
	services.PollTimeConfig
}

// SetByUsernameRequest replaces an election's roster
type SetByUsernameRequest struct {
	TopicID   int64    `json:"topic_id"`
	Usernames []string `json:"usernames"`
}

// PollStatusRequest reports that the poll opened or closed
type PollStatusRequest struct {
	TopicID int64  `json:"topic_id"`
	Status  string `json:"status"`
}

// PollVotersRequest reports the poll's current voter count
type PollVotersRequest struct {
	TopicID int64 `json:"topic_id"`
	Voters  *int  `json:"voters"`
}

// LoginRequest represents a request to open a session
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
