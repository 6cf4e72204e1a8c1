package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/emerald/internal/common"
	"github.com/sushihentaime/emerald/internal/userservice"
)

const (
	testAdminEmail = "admin@emerald.example"
	testPassword   = "TestPassword123!"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

func testConfig(t *testing.T) *Config {
	cfg, err := loadConfig("../.test.env")
	require.NoError(t, err)

	cfg.UploadDir = t.TempDir()

	return cfg
}

// newTestApplication wires the application against postgres and rabbitmq containers.
// Blog events flow through the broker into the feed hub as they do in production.
func newTestApplication(t *testing.T) (*application, *sql.DB) {
	db := common.TestDB(t)
	broker := common.TestBroker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := common.NewMemoryCache(0, 0)

	app, err := newApplication(testConfig(t), logger, db, broker, cache)
	require.NoError(t, err)

	events, err := broker.Subscribe(common.BlogExchange)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go app.hub.Run(ctx, events)
	t.Cleanup(cancel)

	return app, db
}

// createTestUser registers a user and returns its access token. The admin address gets the admin role.
func createTestUser(t *testing.T, app *application, username, email string) (*userservice.User, string) {
	user, token, err := app.userService.CreateUser(context.Background(), userservice.RegisterInput{
		FullName:    "Test " + username,
		Username:    username,
		PhoneNumber: "0712345678",
		Email:       email,
		Password:    testPassword,
	}, userservice.ClientInfo{IPAddress: "127.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)

	return user, token.AccessTokenPlain
}

func (ts *testServer) do(t *testing.T, method, path string, token *string, payload any) (int, http.Header, envelope) {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", *token))
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) post(t *testing.T, path string, data any, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPost, path, token, data)
}

func (ts *testServer) get(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodGet, path, token, nil)
}

func (ts *testServer) put(t *testing.T, path string, token *string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPut, path, token, payload)
}

func (ts *testServer) delete(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodDelete, path, token, nil)
}
