// Package notify delivers booking alerts to external channels on a
// best-effort basis. Delivery runs detached from the request that triggered
// it; failures are logged and discarded, never surfaced to the caller.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"yoyaku/internal/events"
	"yoyaku/internal/metrics"
)

// SMTPConfig configures the email relay channel.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	To   string
}

// Config configures the dispatcher. Channels with empty settings are
// silently skipped; no configured channel at all makes Dispatch a no-op.
type Config struct {
	WebhookURL   string
	WebhookToken string
	SMTP         SMTPConfig
	QueueSize    int
	SendTimeout  time.Duration
}

type message struct {
	subject string
	body    string
}

// Dispatcher consumes booking-created events and pushes them out through
// the configured channels.
type Dispatcher struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	queue   chan message
	logger  *zerolog.Logger
}

// NewDispatcher creates a dispatcher and subscribes it to the bus.
func NewDispatcher(cfg Config, bus *events.EventBus, logger *zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	d := &Dispatcher{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.SendTimeout},
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		queue:   make(chan message, cfg.QueueSize),
		logger:  logger,
	}
	bus.Subscribe(events.TypeBookingCreated, d.handleBookingCreated)
	return d
}

// Enabled reports whether any delivery channel is configured.
func (d *Dispatcher) Enabled() bool {
	return d.config.WebhookURL != "" || (d.config.SMTP.Host != "" && d.config.SMTP.To != "")
}

// bookingCreated mirrors the lifecycle service's created-event payload.
type bookingCreated struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Minutes int       `json:"minutes"`
	Memo    string    `json:"memo"`
}

func (d *Dispatcher) handleBookingCreated(ev events.Event) error {
	if !d.Enabled() {
		return nil
	}
	var payload bookingCreated
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		d.logger.Warn().Err(err).Msg("malformed booking-created payload")
		return nil
	}

	msg := message{
		subject: fmt.Sprintf("【予約】%s %s", payload.StartAt.Format("2006/01/02 15:04"), payload.Name),
		body: fmt.Sprintf("%s\n%s - %s（%d分）\n%s",
			payload.Name,
			payload.StartAt.Format("2006/01/02 15:04"),
			payload.EndAt.Format("15:04"),
			payload.Minutes,
			payload.Memo),
	}

	select {
	case d.queue <- msg:
	default:
		// Queue full: notifications are non-essential, drop rather than block.
		d.logger.Warn().Int64("booking_id", payload.ID).Msg("notification queue full, dropping")
	}
	return nil
}

// Start runs the delivery worker until the context is cancelled. In-flight
// sends at shutdown are dropped.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.Enabled() {
		d.logger.Info().Msg("Notification dispatcher has no channels configured")
		return
	}
	d.logger.Info().
		Bool("webhook", d.config.WebhookURL != "").
		Bool("smtp", d.config.SMTP.Host != "").
		Msg("Notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg message) {
	if d.config.WebhookURL != "" {
		if err := d.sendWebhook(ctx, msg); err != nil {
			metrics.IncNotifyFailure("webhook")
			d.logger.Warn().Err(err).Msg("webhook notification failed")
		}
	}
	if d.config.SMTP.Host != "" && d.config.SMTP.To != "" {
		if err := d.sendEmail(msg); err != nil {
			metrics.IncNotifyFailure("email")
			d.logger.Warn().Err(err).Msg("email notification failed")
		}
	}
}

func (d *Dispatcher) sendWebhook(ctx context.Context, msg message) error {
	form := url.Values{}
	form.Set("message", msg.subject+"\n"+msg.body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.config.WebhookToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.WebhookToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendEmail(msg message) error {
	cfg := d.config.SMTP
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, port)

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	body := fmt.Sprintf("Subject: %s\r\nTo: %s\r\nFrom: %s\r\n\r\n%s",
		msg.subject, cfg.To, cfg.User, msg.body)

	return smtp.SendMail(addr, auth, cfg.User, []string{cfg.To}, []byte(body))
}
