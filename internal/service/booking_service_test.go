package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/database"
	"yoyaku/internal/events"
	"yoyaku/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) UpdateBookingStatus(ctx context.Context, id int64, status string, fee *int64) error {
	return m.Called(ctx, id, status, fee).Error(0)
}

func (m *mockStore) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ListBookings(ctx context.Context, f database.ListFilter) ([]models.Booking, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) ActiveBookings(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) AllBookingsDesc(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) MonthlyStats(ctx context.Context, from, to time.Time) (models.MonthlyStats, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(models.MonthlyStats), args.Error(1)
}

func (m *mockStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockStore) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Feedback), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func newTestService(t *testing.T, store Store, bus EventPublisher) *BookingService {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	logger := zerolog.Nop()
	svc := NewBookingService(store, bus, DefaultConfig(), loc, &logger)
	// Fixed clock: 2030-03-10 08:00 JST.
	svc.SetNow(func() time.Time { return time.Date(2030, 3, 10, 8, 0, 0, 0, loc) })
	return svc
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid request persists and publishes", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(t, store, bus)

		store.On("ActiveBookings", ctx).Return([]models.Booking{}, nil).Once()
		store.On("CreateBooking", ctx, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Booking).ID = 7
		}).Return(nil).Once()
		bus.On("PublishJSON", events.TypeBookingCreated, mock.Anything).Return(nil).Once()

		booking, err := svc.Create(ctx, CreateRequest{
			Name: "Sato", Date: "2030-03-10", Time: "09:00", Minutes: 30, Memo: "first visit",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), booking.ID)
		assert.Equal(t, models.StatusBooked, booking.Status)
		assert.Nil(t, booking.Fee)
		assert.Equal(t, 30, booking.Minutes)
		assert.True(t, booking.EndAt.Equal(booking.StartAt.Add(30*time.Minute)))
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("zero minutes falls back to default", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(t, store, bus)

		store.On("ActiveBookings", ctx).Return([]models.Booking{}, nil).Once()
		store.On("CreateBooking", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		booking, err := svc.Create(ctx, CreateRequest{Name: "Sato", Date: "2030-03-10", Time: "09:00"})
		require.NoError(t, err)
		assert.Equal(t, 30, booking.Minutes)
	})

	t.Run("validation failures", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		cases := []CreateRequest{
			{Name: "   ", Date: "2030-03-10", Time: "09:00"},
			{Name: "Sato", Date: "bad", Time: "09:00"},
			{Name: "Sato", Date: "2030-03-10", Time: "bad"},
			{Name: "Sato", Date: "2030-03-10", Time: "09:00", Minutes: -5},
		}
		for _, req := range cases {
			_, err := svc.Create(ctx, req)
			_, ok := IsValidationError(err)
			assert.True(t, ok, "request %+v should fail validation", req)
		}
		store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("past start rejected", func(t *testing.T) {
		svc := newTestService(t, new(mockStore), new(mockBus))
		_, err := svc.Create(ctx, CreateRequest{Name: "Sato", Date: "2030-03-10", Time: "07:59"})
		assert.ErrorIs(t, err, ErrPastBooking)
	})

	t.Run("overlap rejected before touching the store", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		loc := time.FixedZone("JST", 9*3600)
		existing := models.Booking{
			ID:      1,
			StartAt: time.Date(2030, 3, 10, 9, 0, 0, 0, loc),
			EndAt:   time.Date(2030, 3, 10, 9, 30, 0, 0, loc),
			Status:  models.StatusBooked,
		}
		store.On("ActiveBookings", ctx).Return([]models.Booking{existing}, nil)

		_, err := svc.Create(ctx, CreateRequest{Name: "Suzuki", Date: "2030-03-10", Time: "09:15"})
		assert.ErrorIs(t, err, ErrConflict)
		store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("abutting interval allowed", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(t, store, bus)

		loc := time.FixedZone("JST", 9*3600)
		existing := models.Booking{
			ID:      1,
			StartAt: time.Date(2030, 3, 10, 9, 0, 0, 0, loc),
			EndAt:   time.Date(2030, 3, 10, 9, 30, 0, 0, loc),
			Status:  models.StatusBooked,
		}
		store.On("ActiveBookings", ctx).Return([]models.Booking{existing}, nil).Once()
		store.On("CreateBooking", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := svc.Create(ctx, CreateRequest{Name: "Suzuki", Date: "2030-03-10", Time: "09:30"})
		assert.NoError(t, err)
	})

	t.Run("store slot race surfaces ErrSlotTaken", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("ActiveBookings", ctx).Return([]models.Booking{}, nil).Once()
		store.On("CreateBooking", ctx, mock.Anything).Return(database.ErrSlotTaken).Once()

		_, err := svc.Create(ctx, CreateRequest{Name: "Sato", Date: "2030-03-10", Time: "09:00"})
		assert.ErrorIs(t, err, database.ErrSlotTaken)
	})

	t.Run("publish failure does not fail creation", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockBus)
		svc := newTestService(t, store, bus)

		store.On("ActiveBookings", ctx).Return([]models.Booking{}, nil).Once()
		store.On("CreateBooking", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		_, err := svc.Create(ctx, CreateRequest{Name: "Sato", Date: "2030-03-10", Time: "09:00"})
		assert.NoError(t, err)
	})
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	booked := func(id int64) *models.Booking {
		return &models.Booking{ID: id, Status: models.StatusBooked}
	}

	t.Run("done sets fixed fee when unset", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("GetBooking", ctx, int64(1)).Return(booked(1), nil).Once()
		fee := models.DoneFee
		store.On("UpdateBookingStatus", ctx, int64(1), models.StatusDone, &fee).Return(nil).Once()

		got, err := svc.Transition(ctx, 1, models.ActionDone)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDone, got.Status)
		require.NotNil(t, got.Fee)
		assert.Equal(t, models.DoneFee, *got.Fee)
		store.AssertExpectations(t)
	})

	t.Run("done is idempotent over an existing fee", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		existingFee := int64(2500)
		b := &models.Booking{ID: 1, Status: models.StatusDone, Fee: &existingFee}
		store.On("GetBooking", ctx, int64(1)).Return(b, nil).Once()
		store.On("UpdateBookingStatus", ctx, int64(1), models.StatusDone, &existingFee).Return(nil).Once()

		got, err := svc.Transition(ctx, 1, models.ActionDone)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), *got.Fee)
	})

	t.Run("cancel leaves fee untouched", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		fee := int64(1000)
		b := &models.Booking{ID: 2, Status: models.StatusDone, Fee: &fee}
		store.On("GetBooking", ctx, int64(2)).Return(b, nil).Once()
		store.On("UpdateBookingStatus", ctx, int64(2), models.StatusCancel, &fee).Return(nil).Once()

		got, err := svc.Transition(ctx, 2, models.ActionCancel)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancel, got.Status)
		require.NotNil(t, got.Fee)
		assert.Equal(t, int64(1000), *got.Fee)
	})

	t.Run("book clears fee even from Done", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		fee := int64(1000)
		b := &models.Booking{ID: 3, Status: models.StatusDone, Fee: &fee}
		store.On("GetBooking", ctx, int64(3)).Return(b, nil).Once()
		store.On("ActiveBookings", ctx).Return([]models.Booking{}, nil).Once()
		store.On("UpdateBookingStatus", ctx, int64(3), models.StatusBooked, (*int64)(nil)).Return(nil).Once()

		got, err := svc.Transition(ctx, 3, models.ActionBook)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBooked, got.Status)
		assert.Nil(t, got.Fee)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("GetBooking", ctx, int64(99)).Return(nil, database.ErrNotFound).Once()
		_, err := svc.Transition(ctx, 99, models.ActionDone)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown action", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("GetBooking", ctx, int64(1)).Return(booked(1), nil).Once()
		_, err := svc.Transition(ctx, 1, "archive")
		assert.ErrorIs(t, err, ErrInvalidAction)
		store.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	svc := newTestService(t, store, new(mockBus))

	store.On("DeleteBooking", ctx, int64(1)).Return(nil).Once()
	assert.NoError(t, svc.Delete(ctx, 1))

	store.On("DeleteBooking", ctx, int64(2)).Return(database.ErrNotFound).Once()
	assert.ErrorIs(t, svc.Delete(ctx, 2), ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("limit clamped to cap", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("ListBookings", ctx, database.ListFilter{Limit: 500}).Return([]models.Booking{}, nil).Once()
		_, err := svc.List(ctx, ListQuery{Limit: 100000})
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		svc := newTestService(t, new(mockStore), new(mockBus))
		_, err := svc.List(ctx, ListQuery{Status: "pending"})
		_, ok := IsValidationError(err)
		assert.True(t, ok)
	})
}

func TestMonthlyStats(t *testing.T) {
	ctx := context.Background()

	t.Run("month validated", func(t *testing.T) {
		svc := newTestService(t, new(mockStore), new(mockBus))
		_, err := svc.MonthlyStats(ctx, 2025, 13)
		_, ok := IsValidationError(err)
		assert.True(t, ok)
	})

	t.Run("bounds cover the calendar month", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		loc, _ := time.LoadLocation("Asia/Tokyo")
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
		to := time.Date(2025, 4, 1, 0, 0, 0, 0, loc)
		store.On("MonthlyStats", ctx, from, to).
			Return(models.MonthlyStats{DoneCount: 2, TotalFee: 2500}, nil).Once()

		stats, err := svc.MonthlyStats(ctx, 2025, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.DoneCount)
		assert.Equal(t, int64(2500), stats.TotalFee)
		store.AssertExpectations(t)
	})
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("empty text rejected", func(t *testing.T) {
		svc := newTestService(t, new(mockStore), new(mockBus))
		_, err := svc.CreateFeedback(ctx, "   ")
		_, ok := IsValidationError(err)
		assert.True(t, ok)
	})

	t.Run("text trimmed and stored", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(t, store, new(mockBus))

		store.On("CreateFeedback", ctx, mock.Anything).Run(func(args mock.Arguments) {
			f := args.Get(1).(*models.Feedback)
			assert.Equal(t, "great session", f.Text)
			f.ID = 1
		}).Return(nil).Once()

		f, err := svc.CreateFeedback(ctx, "  great session  ")
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.ID)
	})
}
