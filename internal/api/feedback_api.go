package api

import (
	"encoding/json"
	"net/http"

	"yoyaku/internal/metrics"
	"yoyaku/internal/models"
)

// FeedbackRequest is the request body for POST /api/feedback.
type FeedbackRequest struct {
	Text string `json:"text"`
}

// handleFeedback lists or appends feedback notes.
// GET  /api/feedback
// POST /api/feedback
func (s *HTTPServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("list_feedback")
		items, err := s.svc.ListFeedback(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if items == nil {
			items = []models.Feedback{}
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		metrics.IncHTTP("create_feedback")
		var req FeedbackRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		feedback, err := s.svc.CreateFeedback(r.Context(), req.Text)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, feedback)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
