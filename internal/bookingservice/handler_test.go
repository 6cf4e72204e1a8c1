package bookingservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/emerald/internal/common"
)

type mockRelay struct {
	mock.Mock
}

func (r *mockRelay) RelayBooking(ctx context.Context, b *Booking) error {
	args := r.Called(b)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func janeDoe() BookingInput {
	return BookingInput{Name: "Jane Doe", Email: "jane@example.com", Message: "Need a slot Friday"}
}

func TestNewBookingService(t *testing.T) {
	_, err := NewBookingService(nil, nil, nil, "fax", testLogger())
	assert.ErrorIs(t, err, ErrUnknownDeliveryMode)

	_, err = NewBookingService(nil, nil, nil, DeliveryEmail, testLogger())
	assert.Error(t, err)

	s, err := NewBookingService(nil, nil, &mockRelay{}, DeliveryEmail, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DeliveryEmail, s.Mode())
}

func TestCreateBookingValidation(t *testing.T) {
	relay := &mockRelay{}
	s, err := NewBookingService(nil, nil, relay, DeliveryEmail, testLogger())
	require.NoError(t, err)

	testCases := []struct {
		name    string
		input   BookingInput
		wantErr error
	}{
		{
			name:    "empty form",
			input:   BookingInput{Name: " ", Email: "", Message: "\n"},
			wantErr: common.ValidationError{Errors: map[string]string{"name": "must be provided", "email": "must be provided", "message": "must be provided"}},
		},
		{
			name:    "bad email",
			input:   BookingInput{Name: "Jane", Email: "jane@", Message: "hi"},
			wantErr: common.ValidationError{Errors: map[string]string{"email": "must be a valid email address"}},
		},
		{
			name:    "long name",
			input:   BookingInput{Name: strings.Repeat("n", 101), Email: "jane@example.com", Message: "hi"},
			wantErr: common.ValidationError{Errors: map[string]string{"name": "must not be more than 100 characters long"}},
		},
		{
			name:    "long message",
			input:   BookingInput{Name: "Jane", Email: "jane@example.com", Message: strings.Repeat("m", 2001)},
			wantErr: common.ValidationError{Errors: map[string]string{"message": "must not be more than 2000 characters long"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateBooking(context.Background(), tc.input)
			assert.Equal(t, tc.wantErr, err)
		})
	}

	relay.AssertNotCalled(t, "RelayBooking", mock.Anything)
}

func TestCreateBookingEmailMode(t *testing.T) {
	relay := &mockRelay{}
	s, err := NewBookingService(nil, nil, relay, DeliveryEmail, testLogger())
	require.NoError(t, err)

	match := mock.MatchedBy(func(b *Booking) bool {
		return b.Name == "Jane Doe" && b.Email == "jane@example.com" && b.Message == "Need a slot Friday"
	})
	relay.On("RelayBooking", match).Return(nil).Once()

	b, err := s.CreateBooking(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.Zero(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())
	relay.AssertNumberOfCalls(t, "RelayBooking", 1)

	relay.On("RelayBooking", mock.Anything).Return(errors.New("smtp down")).Once()
	_, err = s.CreateBooking(context.Background(), janeDoe())
	assert.ErrorContains(t, err, "smtp down")
}

func TestCreateBookingStoreMode(t *testing.T) {
	db := common.TestDB(t)
	mb := common.TestBroker(t)

	s, err := NewBookingService(db, mb, nil, DeliveryStore, testLogger())
	require.NoError(t, err)

	msgs, err := mb.Consume(common.BookingCreatedKey, common.BookingExchange, common.BookingCreatedQueue)
	require.NoError(t, err)

	b, err := s.CreateBooking(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.NotZero(t, b.ID)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM session_requests`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var stored Booking
	err = db.QueryRow(`SELECT name, email, message FROM session_requests WHERE id = $1`, b.ID).Scan(&stored.Name, &stored.Email, &stored.Message)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Name)
	assert.Equal(t, "jane@example.com", stored.Email)
	assert.Equal(t, "Need a slot Friday", stored.Message)

	select {
	case d := <-msgs:
		var got Booking
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, "Jane Doe", got.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("booking.created was not published")
	}
}

func TestListBookings(t *testing.T) {
	db := common.TestDB(t)
	mb := common.TestBroker(t)

	s, err := NewBookingService(db, mb, nil, DeliveryStore, testLogger())
	require.NoError(t, err)

	for _, name := range []string{"First", "Second", "Third"} {
		in := janeDoe()
		in.Name = name
		_, err := s.CreateBooking(context.Background(), in)
		require.NoError(t, err)
	}

	bookings, err := s.ListBookings(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, "Third", bookings[0].Name)
	assert.Equal(t, "First", bookings[2].Name)

	bookings, err = s.ListBookings(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "First", bookings[0].Name)
}
