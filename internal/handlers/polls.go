package handlers

import "net/http"

// handlePollStatus receives the poll plugin's open/closed callback
func (h *Handlers) handlePollStatus(w http.ResponseWriter, r *http.Request) {
	var req PollStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	tr, err := h.Polls.StatusChanged(r.Context(), req.TopicID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	if tr == nil {
		respondOK(w, map[string]interface{}{})
		return
	}
	respondOK(w, tr)
}

// handlePollVoters receives the poll plugin's voter count callback
func (h *Handlers) handlePollVoters(w http.ResponseWriter, r *http.Request) {
	var req PollVotersRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Voters == nil || *req.Voters < 0 {
		respondError(w, BadRequest("voters must be a non-negative number"))
		return
	}

	if err := h.Polls.VotersChanged(r.Context(), req.TopicID, *req.Voters); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{})
}
