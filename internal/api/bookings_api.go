package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"yoyaku/internal/metrics"
	"yoyaku/internal/models"
	"yoyaku/internal/service"
)

// CreateBookingRequest is the request body for POST /api/bookings.
type CreateBookingRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // Format: YYYY-MM-DD
	StartTime string `json:"start_time"` // Format: HH:MM or HH:MM:SS
	Minutes   int    `json:"minutes,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

// StatusRequest is the request body for POST /api/bookings/{id}/status.
type StatusRequest struct {
	Action string `json:"action"` // book, done or cancel
}

// handleBookings lists bookings or creates a new one.
// GET  /api/bookings?fr=&to=&status_eq=&limit=&offset=
// POST /api/bookings
func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBookings(w, r)
	case http.MethodPost:
		s.createBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	q := service.ListQuery{}
	params := r.URL.Query()

	if v := params.Get("fr"); v != "" {
		t, err := s.parseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fr: "+err.Error())
			return
		}
		q.From = &t
	}
	if v := params.Get("to"); v != "" {
		t, err := s.parseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
		q.To = &t
	}
	q.Status = params.Get("status_eq")
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		q.Offset = n
	}

	bookings, err := s.svc.List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.Create(r.Context(), service.CreateRequest{
		Name:    req.Name,
		Date:    req.StartDate,
		Time:    req.StartTime,
		Minutes: req.Minutes,
		Memo:    req.Memo,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleBookingByID routes /api/bookings/{id} and /api/bookings/{id}/status.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	if idStr, ok := strings.CutSuffix(rest, "/status"); ok {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid booking id")
			return
		}
		s.updateStatus(w, r, id)
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		s.deleteBooking(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) updateStatus(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("update_status")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.svc.Transition(r.Context(), id, req.Action)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) deleteBooking(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("delete_booking")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMonthlyStats returns completed-session aggregates for a month.
// GET /api/stats/monthly?year=&month=
func (s *HTTPServer) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("monthly_stats")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}

	stats, err := s.svc.MonthlyStats(r.Context(), year, month)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseTimestamp accepts RFC3339 or a zone-less ISO timestamp. Zone-less
// values are attached to the reference zone, not converted.
func (s *HTTPServer) parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", v, s.loc)
}
