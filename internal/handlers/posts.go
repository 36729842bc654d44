package handlers

import (
	"net/http"

	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/services"
)

func (h *Handlers) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req services.NewPost
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	post, err := h.Posts.Create(r.Context(), auth.UserFromContext(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, post)
}

func (h *Handlers) handleEditPost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req services.PostEdit
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	post, err := h.Posts.Edit(r.Context(), auth.UserFromContext(r.Context()), postID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, post)
}

func (h *Handlers) handleDestroyPost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Posts.Destroy(r.Context(), auth.UserFromContext(r.Context()), postID); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

func (h *Handlers) handleRecoverPost(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postID")
	if err != nil {
		respondError(w, err)
		return
	}

	post, err := h.Posts.Recover(r.Context(), auth.UserFromContext(r.Context()), postID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, post)
}

func (h *Handlers) handleNotifications(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	list, err := h.Notifications.List(r.Context(), user.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, list)
}
