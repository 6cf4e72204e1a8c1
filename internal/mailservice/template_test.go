package mailservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTemplate(t *testing.T) {
	template := &Template{}

	testCases := []struct {
		name         string
		templateName string
		data         any
		wantInBody   string
		expectedErr  bool
	}{
		{
			name:         "welcome",
			templateName: welcomeTemplate,
			data: struct {
				FullName string
				Username string
				SiteURL  string
			}{"Jane Doe", "janedoe", "https://emerald.example"},
			wantInBody: "janedoe",
		},
		{
			name:         "password reset",
			templateName: passwordResetTemplate,
			data: struct {
				FullName string
				Token    string
				ResetURL string
			}{"Jane Doe", "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "https://emerald.example/reset-password?token=ABCDEFGHIJKLMNOPQRSTUVWXYZ"},
			wantInBody: "https://emerald.example/reset-password?token=ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		},
		{
			name:         "booking request",
			templateName: bookingTemplate,
			data: BookingRequest{
				ID:        1,
				Name:      "Jane Doe",
				Email:     "jane@example.com",
				Message:   "Need a slot Friday",
				CreatedAt: time.Date(2024, 8, 2, 10, 0, 0, 0, time.UTC),
			},
			wantInBody: "Need a slot Friday",
		},
		{
			name:         "invalid template name",
			templateName: "invalid_template.html",
			data:         nil,
			expectedErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, p, h, err := template.ParseTemplate(tc.templateName, tc.data)
			assert.Equal(t, tc.expectedErr, err != nil)

			if err == nil {
				assert.NotEmpty(t, s.String())
				assert.Contains(t, p.String(), tc.wantInBody)
				assert.NotEmpty(t, h.String())
			}
		})
	}
}

func TestBookingTemplateEscapesHTML(t *testing.T) {
	template := &Template{}

	_, _, h, err := template.ParseTemplate(bookingTemplate, BookingRequest{
		Name:    "<script>alert(1)</script>",
		Email:   "jane@example.com",
		Message: "hi",
	})
	assert.NoError(t, err)
	assert.NotContains(t, h.String(), "<script>")
}
