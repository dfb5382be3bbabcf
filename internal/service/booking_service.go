// Package service implements the booking lifecycle: validation, conflict
// checking, status transitions and monthly aggregation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yoyaku/internal/database"
	"yoyaku/internal/events"
	"yoyaku/internal/metrics"
	"yoyaku/internal/models"
	"yoyaku/internal/timeutil"
)

// Store is the persistence surface the service depends on.
type Store interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string, fee *int64) error
	DeleteBooking(ctx context.Context, id int64) error
	ListBookings(ctx context.Context, f database.ListFilter) ([]models.Booking, error)
	ActiveBookings(ctx context.Context) ([]models.Booking, error)
	AllBookingsDesc(ctx context.Context) ([]models.Booking, error)
	MonthlyStats(ctx context.Context, from, to time.Time) (models.MonthlyStats, error)
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context) ([]models.Feedback, error)
}

// EventPublisher hands domain events off to interested consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Config tunes the lifecycle rules.
type Config struct {
	DefaultMinutes int
	DoneFee        int64
	MaxNameLength  int
	ListLimitCap   int
}

// DefaultConfig returns the rules matching the studio's defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMinutes: models.DefaultMinutes,
		DoneFee:        models.DoneFee,
		MaxNameLength:  100,
		ListLimitCap:   500,
	}
}

// BookingService orchestrates booking creation, transitions and aggregation.
type BookingService struct {
	store  Store
	bus    EventPublisher
	config Config
	loc    *time.Location
	logger *zerolog.Logger
	now    func() time.Time
}

// NewBookingService wires a service over the given store and event bus.
func NewBookingService(store Store, bus EventPublisher, config Config, loc *time.Location, logger *zerolog.Logger) *BookingService {
	if config.DefaultMinutes <= 0 {
		config.DefaultMinutes = models.DefaultMinutes
	}
	if config.DoneFee <= 0 {
		config.DoneFee = models.DoneFee
	}
	if config.MaxNameLength <= 0 {
		config.MaxNameLength = 100
	}
	if config.ListLimitCap <= 0 {
		config.ListLimitCap = 500
	}
	return &BookingService{
		store:  store,
		bus:    bus,
		config: config,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (s *BookingService) SetNow(now func() time.Time) {
	s.now = now
}

// CreateRequest carries the raw client input for a new booking.
type CreateRequest struct {
	Name    string
	Date    string // YYYY-MM-DD
	Time    string // HH:MM or HH:MM:SS
	Minutes int
	Memo    string
}

// BookingCreatedEvent is the payload published on events.TypeBookingCreated.
type BookingCreatedEvent struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Minutes int       `json:"minutes"`
	Memo    string    `json:"memo,omitempty"`
}

// Create validates the request, rejects past or conflicting intervals and
// persists a new Booked record. The created event is published fire-and-
// forget; notification outcome never affects the result.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if len([]rune(name)) > s.config.MaxNameLength {
		return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", s.config.MaxNameLength)}
	}

	minutes := req.Minutes
	if minutes == 0 {
		minutes = s.config.DefaultMinutes
	}
	if minutes < 0 {
		return nil, &ValidationError{Field: "minutes", Reason: "must be positive"}
	}

	day, err := timeutil.ParseDate(req.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: err.Error()}
	}
	clock, err := timeutil.ParseClock(req.Time)
	if err != nil {
		return nil, &ValidationError{Field: "time", Reason: err.Error()}
	}

	start := timeutil.Merge(day, clock, s.loc)
	end := start.Add(time.Duration(minutes) * time.Minute)

	if start.Before(s.now().In(s.loc)) {
		return nil, ErrPastBooking
	}

	active, err := s.store.ActiveBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active bookings: %w", err)
	}
	for i := range active {
		if models.Overlaps(active[i].StartAt, active[i].EndAt, start, end) {
			metrics.IncBookingConflict()
			return nil, ErrConflict
		}
	}

	booking := &models.Booking{
		Name:    name,
		StartAt: start,
		EndAt:   end,
		Minutes: minutes,
		Status:  models.StatusBooked,
		Memo:    strings.TrimSpace(req.Memo),
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated(booking.Status)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Time("start_at", booking.StartAt).
		Int("minutes", booking.Minutes).
		Msg("booking created")

	if err := s.bus.PublishJSON(events.TypeBookingCreated, BookingCreatedEvent{
		ID:      booking.ID,
		Name:    booking.Name,
		StartAt: booking.StartAt,
		EndAt:   booking.EndAt,
		Minutes: booking.Minutes,
		Memo:    booking.Memo,
	}); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("failed to publish created event")
	}

	return booking, nil
}

// Transition applies a status action to a booking.
//
//	done:   status Done, fee set to the fixed fee only when unset
//	cancel: status Cancel, fee untouched
//	book:   status Booked, fee cleared
//
// Returning a cancelled booking to Booked does not re-run the conflict
// check; an overlap introduced that way is logged but allowed.
func (s *BookingService) Transition(ctx context.Context, id int64, action string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	switch action {
	case models.ActionDone:
		booking.Status = models.StatusDone
		if booking.Fee == nil {
			fee := s.config.DoneFee
			booking.Fee = &fee
		}
	case models.ActionCancel:
		booking.Status = models.StatusCancel
	case models.ActionBook:
		booking.Status = models.StatusBooked
		booking.Fee = nil
		s.warnOnResurrectedOverlap(ctx, booking)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if err := s.store.UpdateBookingStatus(ctx, id, booking.Status, booking.Fee); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", id).
		Str("action", action).
		Str("status", booking.Status).
		Msg("booking status updated")
	metrics.IncBookingTransition(action)

	return booking, nil
}

func (s *BookingService) warnOnResurrectedOverlap(ctx context.Context, booking *models.Booking) {
	active, err := s.store.ActiveBookings(ctx)
	if err != nil {
		return
	}
	for i := range active {
		if active[i].ID == booking.ID {
			continue
		}
		if active[i].Overlaps(booking) {
			s.logger.Warn().
				Int64("booking_id", booking.ID).
				Int64("overlaps_with", active[i].ID).
				Msg("re-booked interval overlaps an active booking")
			return
		}
	}
}

// Delete permanently removes a booking.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("booking %d: %w", id, ErrNotFound)
		}
		return err
	}
	s.logger.Info().Int64("booking_id", id).Msg("booking deleted")
	return nil
}

// ListQuery narrows and pages a listing. Bounds are inclusive.
type ListQuery struct {
	From   *time.Time
	To     *time.Time
	Status string
	Limit  int
	Offset int
}

// List returns bookings ordered by start time ascending. The limit is
// clamped to the configured cap; zero or negative means "cap".
func (s *BookingService) List(ctx context.Context, q ListQuery) ([]models.Booking, error) {
	if q.Status != "" && !models.ValidStatus(q.Status) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", q.Status)}
	}
	limit := q.Limit
	if limit <= 0 || limit > s.config.ListLimitCap {
		limit = s.config.ListLimitCap
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return s.store.ListBookings(ctx, database.ListFilter{
		From:   q.From,
		To:     q.To,
		Status: q.Status,
		Limit:  limit,
		Offset: offset,
	})
}

// MonthlyStats counts completed sessions and sums fees for one calendar
// month in the reference zone.
func (s *BookingService) MonthlyStats(ctx context.Context, year, month int) (models.MonthlyStats, error) {
	if month < 1 || month > 12 {
		return models.MonthlyStats{}, &ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	from, to := timeutil.MonthBounds(year, month, s.loc)
	return s.store.MonthlyStats(ctx, from, to)
}

// CreateFeedback appends a feedback note.
func (s *BookingService) CreateFeedback(ctx context.Context, text string) (*models.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "required"}
	}
	f := &models.Feedback{Text: text}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ListFeedback returns all feedback, newest first.
func (s *BookingService) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	return s.store.ListFeedback(ctx)
}

// Export returns all bookings ordered by start time descending, the feed
// used by the CSV and Excel export handlers.
func (s *BookingService) Export(ctx context.Context) ([]models.Booking, error) {
	return s.store.AllBookingsDesc(ctx)
}
