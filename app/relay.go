package main

import (
	"context"

	"github.com/sushihentaime/emerald/internal/bookingservice"
	"github.com/sushihentaime/emerald/internal/mailservice"
)

// mailRelay sends booking requests straight through the mail service.
type mailRelay struct {
	mail *mailservice.MailService
}

func (m *mailRelay) RelayBooking(ctx context.Context, b *bookingservice.Booking) error {
	return m.mail.SendBookingRequest(ctx, mailservice.BookingRequest{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Message:   b.Message,
		CreatedAt: b.CreatedAt,
	})
}
