package mailservice

import (
	"time"

	"github.com/go-mail/mail/v2"
)

// NewMailer dials the SMTP relay for every message; the dialer is shared by all consumers.
func NewMailer(host string, port int, username, password, sender string, tp TemplateParser) *Mail {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return &Mail{
		dialer: dialer,
		sender: sender,
		parser: tp,
	}
}

func (m *Mail) send(out *outgoing) error {
	subject, plainBody, htmlBody, err := m.parser.ParseTemplate(out.template, out.data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", out.recipient)
	if out.replyTo != "" {
		msg.SetHeader("Reply-To", out.replyTo)
	}
	msg.SetHeader("Subject", subject.String())
	msg.SetDateHeader("Date", time.Now())
	msg.SetBody("text/plain", plainBody.String())
	msg.AddAlternative("text/html", htmlBody.String())

	// one SMTP session at a time
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dialer.DialAndSend(msg)
}
