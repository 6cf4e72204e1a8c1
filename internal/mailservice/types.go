package mailservice

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/go-mail/mail/v2"

	"github.com/sushihentaime/emerald/internal/common"
)

type MailService struct {
	mb         common.MessageConsumer
	m          Mailer
	logger     MailLogger
	staffEmail string
	siteURL    string
	retryDelay time.Duration
	maxRetries int
	ctx        context.Context
	cancel     context.CancelFunc
}

// Options configures the SMTP relay and the addresses used in outgoing mail.
type Options struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Sender     string
	StaffEmail string
	SiteURL    string
}

type MailLogger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}

type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

type Mailer interface {
	send(out *outgoing) error
}

type Template struct {
	mu     sync.Mutex
	parsed map[string]*template.Template
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}

// BookingRequest is the booking.created payload.
type BookingRequest struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// userEvent mirrors the payload published on the user exchange.
type userEvent struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// outgoing is one rendered email waiting to be sent.
type outgoing struct {
	recipient string
	replyTo   string
	template  string
	data      any
}
