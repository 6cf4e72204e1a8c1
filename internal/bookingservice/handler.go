package bookingservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
)

var ErrUnknownDeliveryMode = errors.New("unknown booking delivery mode")

// NewBookingService returns a service for the given delivery mode. relay is only used in
// DeliveryEmail mode and may be nil otherwise.
func NewBookingService(db *sql.DB, mb common.MessageProducer, relay Relay, mode DeliveryMode, logger *slog.Logger) (*BookingService, error) {
	switch mode {
	case DeliveryStore:
	case DeliveryEmail:
		if relay == nil {
			return nil, fmt.Errorf("booking delivery %q requires a mail relay", mode)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeliveryMode, mode)
	}

	return &BookingService{m: &BookingModel{db: db}, mb: mb, relay: relay, mode: mode, logger: logger}, nil
}

func (s *BookingService) Mode() DeliveryMode {
	return s.mode
}

// CreateBooking accepts a session request from the public booking form.
func (s *BookingService) CreateBooking(ctx context.Context, in BookingInput) (*Booking, error) {
	b := &Booking{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Message: strings.TrimSpace(in.Message),
	}

	v := common.NewValidator()
	validateName(v, b.Name)
	validateEmail(v, b.Email)
	validateMessage(v, b.Message)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if s.mode == DeliveryEmail {
		b.CreatedAt = time.Now().UTC()

		err := s.relay.RelayBooking(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("relay booking: %w", err)
		}

		return b, nil
	}

	err := s.m.insert(ctx, b)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, b)

	return b, nil
}

// notify queues the staff email. The request is already stored, so a failure is only logged.
func (s *BookingService) notify(ctx context.Context, b *Booking) {
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Error("could not encode booking", slog.Int("id", b.ID), slog.String("error", err.Error()))
		return
	}

	err = s.mb.Publish(ctx, data, common.BookingCreatedKey, common.BookingExchange)
	if err != nil {
		s.logger.Error("could not publish booking", slog.Int("id", b.ID), slog.String("error", err.Error()))
	}
}

// ListBookings returns stored session requests, newest first.
func (s *BookingService) ListBookings(ctx context.Context, limit, offset int) ([]*Booking, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if offset < 0 {
		offset = 0
	}

	return s.m.list(ctx, limit, offset)
}
