package mailservice

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSendEmail(t *testing.T) {
	testCases := []struct {
		name        string
		out         *outgoing
		parseErr    error
		dialErr     error
		wantErr     bool
		wantDials   bool
		wantReplyTo []string
	}{
		{
			name:      "success",
			out:       &outgoing{recipient: "test@example.com", template: "template.html"},
			wantDials: true,
		},
		{
			name:        "reply to client",
			out:         &outgoing{recipient: "test@example.com", replyTo: "jane@example.com", template: "template.html"},
			wantDials:   true,
			wantReplyTo: []string{"jane@example.com"},
		},
		{
			name:     "template error",
			out:      &outgoing{recipient: "test@example.com", template: "template.html"},
			parseErr: errors.New("bad template"),
			wantErr:  true,
		},
		{
			name:      "smtp error",
			out:       &outgoing{recipient: "test@example.com", template: "template.html"},
			dialErr:   errors.New("connection refused"),
			wantErr:   true,
			wantDials: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockParser := new(MockTemplate)
			mockDialer := new(MockDialer)

			mailer := Mail{
				dialer: mockDialer,
				parser: mockParser,
				sender: "sender@example.com",
			}

			if tc.parseErr != nil {
				mockParser.On("ParseTemplate", "template.html", mock.Anything).Return(nil, nil, nil, tc.parseErr)
			} else {
				subject := bytes.NewBufferString("Test Subject")
				plainBody := bytes.NewBufferString("Test Plain Body")
				htmlBody := bytes.NewBufferString("Test HTML Body")
				mockParser.On("ParseTemplate", "template.html", mock.Anything).Return(subject, plainBody, htmlBody, nil)
			}

			if tc.wantDials {
				mockDialer.On("DialAndSend", mock.MatchedBy(func(msgs []*mail.Message) bool {
					if len(msgs) != 1 || msgs[0].GetHeader("To")[0] != "test@example.com" {
						return false
					}
					return assert.ObjectsAreEqual(tc.wantReplyTo, msgs[0].GetHeader("Reply-To"))
				})).Return(tc.dialErr)
			}

			err := mailer.send(tc.out)
			assert.Equal(t, tc.wantErr, err != nil)

			mockParser.AssertExpectations(t)
			mockDialer.AssertExpectations(t)
		})
	}
}
