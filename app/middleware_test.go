package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sushihentaime/emerald/internal/userservice"
)

func strptr(s string) *string {
	return &s
}

func newBareApplication(cfg *Config) *application {
	return &application{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRecoverPanic(t *testing.T) {
	app := newBareApplication(&Config{})

	// Create a test HTTP handler that will panic
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	app.recoverPanic(handler).ServeHTTP(res, req)

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "close", res.Header().Get("Connection"))
	assert.JSONEq(t, `{"error": "the server encountered a problem and could not process your request"}`, res.Body.String())
}

func TestAuthenticate(t *testing.T) {
	app, _ := newTestApplication(t)
	_, token := createTestUser(t, app, "testuser", "testuser@example.com")

	tests := []struct {
		name           string
		authHeader     *string
		expectedStatus int
		wantAnonymous  bool
	}{
		{
			name:           "No Authentication Header",
			expectedStatus: http.StatusOK,
			wantAnonymous:  true,
		},
		{
			name:           "Malformed Authentication Header",
			authHeader:     strptr("Token " + token),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Authentication Token",
			authHeader:     strptr("Bearer invalid-token"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Unknown Authentication Token",
			authHeader:     strptr("Bearer ABCDEFGHIJKLMNOPQRSTUVWXYZ"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Authentication Header",
			authHeader:     strptr("Bearer " + token),
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser *userservice.User
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = app.getUserContext(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != nil {
				req.Header.Set("Authorization", *tt.authHeader)
			}
			res := httptest.NewRecorder()

			app.authenticate(handler).ServeHTTP(res, req)

			assert.Equal(t, tt.expectedStatus, res.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.wantAnonymous, gotUser.IsAnonymous())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	app := newBareApplication(&Config{})

	tests := []struct {
		name           string
		user           *userservice.User
		expectedStatus int
	}{
		{name: "anonymous", user: &userservice.AnonymousUser, expectedStatus: http.StatusUnauthorized},
		{name: "regular user", user: &userservice.User{ID: 1, Role: userservice.RoleUser}, expectedStatus: http.StatusForbidden},
		{name: "admin", user: &userservice.User{ID: 2, Role: userservice.RoleAdmin}, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = app.createUserContext(req, tt.user, "")
			res := httptest.NewRecorder()

			app.requireAdmin(okHandler).ServeHTTP(res, req)

			assert.Equal(t, tt.expectedStatus, res.Code)
		})
	}
}

func TestRequireAuthUser(t *testing.T) {
	app := newBareApplication(&Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	app.requireAuthUser(okHandler).ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Bearer", res.Header().Get("WWW-Authenticate"))

	req = app.createUserContext(httptest.NewRequest(http.MethodGet, "/", nil), &userservice.User{ID: 1}, "")
	res = httptest.NewRecorder()
	app.requireAuthUser(okHandler).ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestEnableCORS(t *testing.T) {
	app := newBareApplication(&Config{TrustedOrigins: []string{"http://example.com"}})

	middleware := app.enableCORS(okHandler)

	tests := []struct {
		name                       string
		origin                     string
		method                     string
		accessControlRequestMethod *string
		wantAllowOrigin            string
		wantAllowMethods           string
	}{
		{
			name:            "Valid Origin and Method",
			origin:          "http://example.com",
			method:          http.MethodGet,
			wantAllowOrigin: "http://example.com",
		},
		{
			name:                       "Valid Origin and Preflight Request",
			origin:                     "http://example.com",
			method:                     http.MethodOptions,
			accessControlRequestMethod: strptr(http.MethodPut),
			wantAllowOrigin:            "http://example.com",
			wantAllowMethods:           "OPTIONS, PUT, PATCH, DELETE",
		},
		{
			name:   "Invalid Origin",
			origin: "http://invalid.com",
			method: http.MethodGet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.accessControlRequestMethod != nil {
				req.Header.Set("Access-Control-Request-Method", *tt.accessControlRequestMethod)
			}
			res := httptest.NewRecorder()

			middleware.ServeHTTP(res, req)

			assert.Equal(t, http.StatusOK, res.Code)
			assert.Equal(t, tt.wantAllowOrigin, res.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantAllowMethods, res.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantStatus []int
	}{
		{
			name:       "enabled",
			enabled:    true,
			wantStatus: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:       "disabled",
			enabled:    false,
			wantStatus: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newBareApplication(&Config{RateLimitEnabled: tt.enabled, RateLimitRPS: 0.001, RateLimitBurst: 2})
			middleware := app.rateLimit(okHandler)

			for i, want := range tt.wantStatus {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.RemoteAddr = "203.0.113.7:5000"
				res := httptest.NewRecorder()

				middleware.ServeHTTP(res, req)
				assert.Equal(t, want, res.Code, "request %d", i)
			}

			// another client has its own bucket
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.8:5000"
			res := httptest.NewRecorder()
			middleware.ServeHTTP(res, req)
			assert.Equal(t, http.StatusOK, res.Code)
		})
	}
}
