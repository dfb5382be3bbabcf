// Package api exposes the booking service over HTTP to the admin dashboard
// and other clients.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoyaku/internal/database"
	"yoyaku/internal/service"
)

// HTTPServer serves the booking API.
type HTTPServer struct {
	svc  *service.BookingService
	db   *database.DB
	loc  *time.Location
	log  *zerolog.Logger
	addr string
}

// NewHTTPServer wires the API over the service and store.
func NewHTTPServer(svc *service.BookingService, db *database.DB, port int, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		svc:  svc,
		db:   db,
		loc:  db.Location(),
		log:  logger,
		addr: fmt.Sprintf(":%d", port),
	}
}

// Routes builds the request mux with logging middleware applied.
func (s *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bookings", s.handleBookings)
	mux.HandleFunc("/api/bookings/", s.handleBookingByID)
	mux.HandleFunc("/api/stats/monthly", s.handleMonthlyStats)
	mux.HandleFunc("/api/feedback", s.handleFeedback)
	mux.HandleFunc("/export.csv", s.handleExportCSV)
	mux.HandleFunc("/export.xlsx", s.handleExportExcel)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return s.withRequestLog(mux)
}

// Start runs the server until the context is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	s.log.Info().Str("addr", s.addr).Msg("API server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// withRequestLog tags each request with an id and logs its outcome.
func (s *HTTPServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if err := s.db.PingContext(ctxPing); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Each outcome stays distinct for the caller: validation, past_booking,
// conflict and slot_taken never collapse into a generic failure.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errIsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, service.ErrPastBooking):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "past_booking"})
	case errors.Is(err, service.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, database.ErrSlotTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "slot_taken"})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, database.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, service.ErrInvalidAction):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_action"})
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func errIsValidation(err error) bool {
	_, ok := service.IsValidationError(err)
	return ok
}
