package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/events"
	"yoyaku/internal/service"
)

func publishCreated(t *testing.T, bus *events.EventBus) {
	t.Helper()
	loc := time.FixedZone("JST", 9*3600)
	err := bus.PublishJSON(events.TypeBookingCreated, service.BookingCreatedEvent{
		ID:      1,
		Name:    "Sato",
		StartAt: time.Date(2030, 3, 10, 9, 0, 0, 0, loc),
		EndAt:   time.Date(2030, 3, 10, 9, 30, 0, 0, loc),
		Minutes: 30,
		Memo:    "first visit",
	})
	require.NoError(t, err)
}

func TestDispatcher_WebhookDelivery(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
	}))
	defer srv.Close()

	bus := events.NewEventBus()
	logger := zerolog.Nop()
	d := NewDispatcher(Config{WebhookURL: srv.URL, WebhookToken: "token123"}, bus, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	publishCreated(t, bus)

	select {
	case body := <-received:
		assert.Contains(t, body, "Sato")
		assert.Contains(t, body, "2030%2F03%2F10+09%3A00")
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := events.NewEventBus()
	logger := zerolog.Nop()
	d := NewDispatcher(Config{WebhookURL: srv.URL}, bus, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	// Publishing must never error, whatever the channel does.
	assert.NotPanics(t, func() { publishCreated(t, bus) })
	time.Sleep(100 * time.Millisecond)
}

func TestDispatcher_NoChannelsIsNoop(t *testing.T) {
	bus := events.NewEventBus()
	logger := zerolog.Nop()
	d := NewDispatcher(Config{}, bus, &logger)

	assert.False(t, d.Enabled())
	// Handler runs synchronously on publish; with no channels it must
	// return without queueing.
	publishCreated(t, bus)
	assert.Empty(t, d.queue)
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	bus := events.NewEventBus()
	logger := zerolog.Nop()
	d := NewDispatcher(Config{WebhookURL: "http://127.0.0.1:1", QueueSize: 1}, bus, &logger)

	// Worker not started: second publish finds the queue full and drops.
	publishCreated(t, bus)
	publishCreated(t, bus)
	assert.Len(t, d.queue, 1)
}
