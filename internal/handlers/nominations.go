package handlers

import (
	"net/http"

	"github.com/abrezinsky/forumelections/internal/auth"
)

func (h *Handlers) handleSetByUsername(w http.ResponseWriter, r *http.Request) {
	var req SetByUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if _, err := h.Nominations.SetByUsername(r.Context(), req.TopicID, req.Usernames); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.Elections.Get(r.Context(), req.TopicID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, SetByUsernameResponse{Usernames: view.Usernames, UserIDs: view.Nominations})
}

func (h *Handlers) handleAddSelf(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	change, err := h.Nominations.AddSelf(r.Context(), req.TopicID, auth.UserFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, change)
}

// handleRemoveSelf reads topic_id from the query string
func (h *Handlers) handleRemoveSelf(w http.ResponseWriter, r *http.Request) {
	topicID, err := parseIDQuery(r, "topic_id")
	if err != nil {
		respondError(w, err)
		return
	}

	change, err := h.Nominations.RemoveSelf(r.Context(), topicID, auth.UserFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, change)
}
