package handlers

import "github.com/abrezinsky/forumelections/internal/models"

// CreateElectionResponse is the response for election creation
type CreateElectionResponse struct {
	URL string `json:"url"`
}

// SetByUsernameResponse is the response for roster replacement
type SetByUsernameResponse struct {
	Usernames []string `json:"usernames"`
	UserIDs   []int64  `json:"user_ids"`
}

// SessionResponse is the response for a successful login
type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}
