package mailservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/emerald/internal/common"
)

func newTestMailService(mc common.MessageConsumer, mailer Mailer) *MailService {
	ctx, cancel := context.WithCancel(context.Background())

	return &MailService{
		mb:         mc,
		m:          mailer,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		staffEmail: "staff@emerald.example",
		siteURL:    "https://emerald.example",
		retryDelay: time.Millisecond,
		maxRetries: 3,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func expectAllQueues(mc *MockMessageConsumer) {
	mc.On("Consume", common.UserCreatedKey, common.UserExchange, common.UserCreatedQueue).Return(nil)
	mc.On("Consume", common.PasswordResetKey, common.UserExchange, common.PasswordResetQueue).Return(nil)
	mc.On("Consume", common.BookingCreatedKey, common.BookingExchange, common.BookingCreatedQueue).Return(nil)
}

func TestStartSendsQueuedMail(t *testing.T) {
	mockMC := &MockMessageConsumer{Bodies: map[common.Queue][]string{
		common.UserCreatedQueue:    {`{"email":"jane@example.com","full_name":"Jane Doe","username":"janedoe"}`},
		common.PasswordResetQueue:  {`{"email":"john@example.com","full_name":"John","token":"ABCDEFGHIJKLMNOPQRSTUVWXYZ"}`},
		common.BookingCreatedQueue: {`{"id":1,"name":"Jane Doe","email":"jane@example.com","message":"Need a slot Friday"}`},
	}}
	expectAllQueues(mockMC)

	sent := make(chan string, 3)
	mockMailer := new(MockMailer)
	mockMailer.On("send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		sent <- args.String(0) + " " + args.String(2)
	})

	s := newTestMailService(mockMC, mockMailer)
	t.Cleanup(s.Close)

	require.NoError(t, s.Start())

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case m := <-sent:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for mail")
		}
	}

	assert.ElementsMatch(t, []string{
		"jane@example.com " + welcomeTemplate,
		"john@example.com " + passwordResetTemplate,
		"staff@emerald.example " + bookingTemplate,
	}, got)

	mockMC.AssertExpectations(t)
}

func TestPasswordResetEmailData(t *testing.T) {
	s := newTestMailService(nil, nil)

	out, err := s.passwordResetEmail([]byte(`{"email":"john@example.com","full_name":"John","token":"ABC DEF"}`))
	require.NoError(t, err)

	assert.Equal(t, "john@example.com", out.recipient)
	assert.Equal(t, passwordResetTemplate, out.template)
	assert.Contains(t, fmt.Sprintf("%+v", out.data), "https://emerald.example/reset-password?token=ABC+DEF")
}

func TestDeliverRetries(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("send", "jane@example.com", mock.Anything, welcomeTemplate).Return(errors.New("temporary failure")).Twice()
	mockMailer.On("send", "jane@example.com", mock.Anything, welcomeTemplate).Return(nil).Once()

	s := newTestMailService(nil, mockMailer)
	t.Cleanup(s.Close)

	ok := s.deliver("welcome email", &outgoing{recipient: "jane@example.com", template: welcomeTemplate})
	assert.True(t, ok)
	mockMailer.AssertNumberOfCalls(t, "send", 3)
}

func TestDeliverGivesUp(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("permanent failure"))

	s := newTestMailService(nil, mockMailer)
	t.Cleanup(s.Close)

	ok := s.deliver("welcome email", &outgoing{recipient: "jane@example.com", template: welcomeTemplate})
	assert.False(t, ok)
	mockMailer.AssertNumberOfCalls(t, "send", 3)
}

func TestSendBookingRequest(t *testing.T) {
	req := BookingRequest{Name: "Jane Doe", Email: "jane@example.com", Message: "Need a slot Friday"}

	t.Run("relays to staff", func(t *testing.T) {
		mockMailer := new(MockMailer)
		mockMailer.On("send", "staff@emerald.example", req, bookingTemplate).Return(nil).Once()

		s := newTestMailService(nil, mockMailer)
		assert.NoError(t, s.SendBookingRequest(context.Background(), req))
		mockMailer.AssertExpectations(t)
	})

	t.Run("relay failure is returned", func(t *testing.T) {
		mockMailer := new(MockMailer)
		mockMailer.On("send", "staff@emerald.example", req, bookingTemplate).Return(errors.New("relay down")).Once()

		s := newTestMailService(nil, mockMailer)
		assert.Error(t, s.SendBookingRequest(context.Background(), req))
	})

	t.Run("no staff address", func(t *testing.T) {
		s := newTestMailService(nil, new(MockMailer))
		s.staffEmail = ""
		assert.ErrorIs(t, s.SendBookingRequest(context.Background(), req), ErrNoStaffEmail)
	})
}
