package bookingservice

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
)

// DeliveryMode selects what happens to an accepted booking request.
type DeliveryMode string

const (
	// DeliveryStore saves the request and notifies staff asynchronously through the broker.
	DeliveryStore DeliveryMode = "store"
	// DeliveryEmail sends the request straight to staff and keeps no record.
	DeliveryEmail DeliveryMode = "email"
)

type Booking struct {
	ID        int       `json:"id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingInput struct {
	Name    string
	Email   string
	Message string
}

// Relay hands a booking to staff synchronously.
type Relay interface {
	RelayBooking(ctx context.Context, b *Booking) error
}

type BookingModel struct {
	db *sql.DB
}

type BookingService struct {
	m      *BookingModel
	mb     common.MessageProducer
	relay  Relay
	mode   DeliveryMode
	logger *slog.Logger
}
