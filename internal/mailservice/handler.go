package mailservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
	"golang.org/x/exp/rand"
)

const (
	welcomeTemplate       = "welcome_email.html"
	passwordResetTemplate = "password_reset.html"
	bookingTemplate       = "booking_request.html"
)

var ErrNoStaffEmail = errors.New("no staff email configured")

func NewMailService(mb common.MessageConsumer, opts Options, logger MailLogger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:         mb,
		m:          NewMailer(opts.Host, opts.Port, opts.Username, opts.Password, opts.Sender, NewTemplate()),
		logger:     logger,
		staffEmail: opts.StaffEmail,
		siteURL:    strings.TrimRight(opts.SiteURL, "/"),
		retryDelay: 500 * time.Millisecond,
		maxRetries: 5,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to every queue the service sends mail for.
func (s *MailService) Start() error {
	consumers := []struct {
		name     string
		key      common.BindingKey
		exchange common.Exchange
		queue    common.Queue
		build    func([]byte) (*outgoing, error)
	}{
		{"welcome email", common.UserCreatedKey, common.UserExchange, common.UserCreatedQueue, s.welcomeEmail},
		{"password reset email", common.PasswordResetKey, common.UserExchange, common.PasswordResetQueue, s.passwordResetEmail},
		{"booking notification", common.BookingCreatedKey, common.BookingExchange, common.BookingCreatedQueue, s.bookingEmail},
	}

	for _, c := range consumers {
		if err := s.consume(c.name, c.key, c.exchange, c.queue, c.build); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}

	return nil
}

func (s *MailService) welcomeEmail(body []byte) (*outgoing, error) {
	var data userEvent
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	return &outgoing{
		recipient: data.Email,
		template:  welcomeTemplate,
		data: struct {
			FullName string
			Username string
			SiteURL  string
		}{data.FullName, data.Username, s.siteURL},
	}, nil
}

func (s *MailService) passwordResetEmail(body []byte) (*outgoing, error) {
	var data userEvent
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	return &outgoing{
		recipient: data.Email,
		template:  passwordResetTemplate,
		data: struct {
			FullName string
			Token    string
			ResetURL string
		}{data.FullName, data.Token, s.siteURL + "/reset-password?token=" + url.QueryEscape(data.Token)},
	}, nil
}

func (s *MailService) bookingEmail(body []byte) (*outgoing, error) {
	var data BookingRequest
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	if s.staffEmail == "" {
		return nil, ErrNoStaffEmail
	}

	return &outgoing{recipient: s.staffEmail, replyTo: data.Email, template: bookingTemplate, data: data}, nil
}

// SendBookingRequest relays a booking to staff synchronously, without retries.
func (s *MailService) SendBookingRequest(ctx context.Context, req BookingRequest) error {
	if s.staffEmail == "" {
		return ErrNoStaffEmail
	}

	done := make(chan error, 1)
	go func() {
		done <- s.m.send(&outgoing{recipient: s.staffEmail, replyTo: req.Email, template: bookingTemplate, data: req})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MailService) consume(name string, key common.BindingKey, exchange common.Exchange, queue common.Queue, build func([]byte) (*outgoing, error)) error {
	msgs, err := s.mb.Consume(key, exchange, queue)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				out, err := build(msg.Body)
				if err != nil {
					s.logger.Error("could not build "+name, slog.String("error", err.Error()))
					msg.Ack(false)
					continue
				}

				s.deliver(name, out)
				msg.Ack(false)

			case <-s.ctx.Done():
				s.logger.Info("stopping " + name + " consumer due to context cancellation")
				return
			}
		}
	}()

	return nil
}

// deliver sends with jittered exponential backoff and reports whether it succeeded.
func (s *MailService) deliver(name string, out *outgoing) bool {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.m.send(out)
		if err == nil {
			s.logger.Info(name+" sent", slog.String("email", out.recipient))
			return true
		}

		delay := time.Duration(rand.Int63n(int64(s.retryDelay) << uint(attempt)))
		s.logger.Info("delaying "+name, slog.String("email", out.recipient), slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return false
		}
	}

	s.logger.Error("could not send "+name, slog.String("email", out.recipient))
	return false
}

func (s *MailService) Close() {
	s.cancel()
}
