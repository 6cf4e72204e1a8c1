package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestDescribeUserAgent(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		wantParts []string
	}{
		{
			name:      "desktop browser",
			raw:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantParts: []string{"Chrome 120", "Windows", "(desktop)"},
		},
		{
			name:      "mobile browser",
			raw:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantParts: []string{"Safari", "iOS", "(mobile)"},
		},
		{
			name: "empty",
			raw:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := describeUserAgent(tc.raw)
			if tc.wantParts == nil {
				assert.Empty(t, got)
			}
			for _, part := range tc.wantParts {
				assert.Contains(t, got, part)
			}
		})
	}

	assert.LessOrEqual(t, len(describeUserAgent(strings.Repeat("x", 400))), 255)
}

func TestReadIDParam(t *testing.T) {
	app := newBareApplication(&Config{})

	testCases := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{id: "42", want: 42},
		{id: "0", wantErr: true},
		{id: "-3", wantErr: true},
		{id: "abc", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), httprouter.ParamsKey, httprouter.Params{{Key: "id", Value: tc.id}}))

			got, err := app.readIDParam(req, "id")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadLimitOffsetParams(t *testing.T) {
	app := newBareApplication(&Config{})

	testCases := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{query: "", wantLimit: 0, wantOffset: 0},
		{query: "limit=5&offset=10", wantLimit: 5, wantOffset: 10},
		{query: "limit=five", wantErr: true},
		{query: "offset=1.5", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)

			limit, offset, err := app.readLimitOffsetParams(req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantOffset, offset)
		})
	}
}
