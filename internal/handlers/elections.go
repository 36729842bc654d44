package handlers

import (
	"net/http"

	"github.com/abrezinsky/forumelections/internal/auth"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/services"
)

func (h *Handlers) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req services.CreateElection
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	e, err := h.Elections.Create(r.Context(), auth.UserFromContext(r.Context()), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, CreateElectionResponse{URL: e.URL()})
}

func (h *Handlers) handleGetElection(w http.ResponseWriter, r *http.Request) {
	topicID, err := parseIDParam(r, "topicID")
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.Elections.Get(r.Context(), topicID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, view)
}

func (h *Handlers) handleShareQR(w http.ResponseWriter, r *http.Request) {
	topicID, err := parseIDParam(r, "topicID")
	if err != nil {
		respondError(w, err)
		return
	}

	png, err := h.Elections.ShareQR(r.Context(), topicID, h.opts.BaseURL)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (h *Handlers) handleStartPoll(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	tr, err := h.Elections.StartPoll(r.Context(), req.TopicID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, tr)
}

func (h *Handlers) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	tr, err := h.Elections.SetStatus(r.Context(), req.TopicID, models.ElectionStatus(req.Status), services.StatusOptions{})
	if err != nil {
		respondError(w, err)
		return
	}
	respondValue(w, tr.To)
}

func (h *Handlers) handleSetSelfNominationAllowed(w http.ResponseWriter, r *http.Request) {
	var req BoolValueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Value == nil {
		respondError(w, BadRequest("value is required"))
		return
	}

	allowed, err := h.Elections.SetSelfNominationAllowed(r.Context(), req.TopicID, *req.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	respondValue(w, allowed)
}

func (h *Handlers) handleSetStatusBanner(w http.ResponseWriter, r *http.Request) {
	var req BoolValueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Value == nil {
		respondError(w, BadRequest("value is required"))
		return
	}

	banner, err := h.Elections.SetStatusBanner(r.Context(), req.TopicID, *req.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	respondValue(w, banner)
}

func (h *Handlers) handleSetStatusBannerResultHours(w http.ResponseWriter, r *http.Request) {
	var req IntValueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Value == nil {
		respondError(w, BadRequest("value is required"))
		return
	}

	hours, err := h.Elections.SetStatusBannerResultHours(r.Context(), req.TopicID, *req.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	respondValue(w, hours)
}

// handleSetMessage serves set-message and, with a fixed kind, the routes
// for the individual phase messages
func (h *Handlers) handleSetMessage(kind services.MessageType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
		msgType := kind
		if msgType == "" {
			msgType = services.MessageType(req.Type)
		}

		message, err := h.Elections.SetMessage(r.Context(), req.TopicID, msgType, req.Message)
		if err != nil {
			respondError(w, err)
			return
		}
		respondValue(w, message)
	}
}

func (h *Handlers) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	position, err := h.Elections.SetPosition(r.Context(), req.TopicID, req.Position)
	if err != nil {
		respondError(w, err)
		return
	}
	respondValue(w, position)
}

func (h *Handlers) handleSetPollTime(w http.ResponseWriter, r *http.Request) {
	var req PollTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Times.SetPollTime(r.Context(), req.TopicID, req.PollTimeConfig); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{})
}

func (h *Handlers) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDQuery(r, "category_id")
	if err != nil {
		respondError(w, err)
		return
	}

	list, err := h.Lists.CategoryList(r.Context(), categoryID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, list)
}

func (h *Handlers) handleCategoryBanner(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDQuery(r, "category_id")
	if err != nil {
		respondError(w, err)
		return
	}

	list, err := h.Lists.Banner(r.Context(), categoryID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, list)
}
