package main

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/emerald/internal/mediaservice"
)

func newUploadApplication(t *testing.T, uploadTimeout time.Duration) *application {
	dir := t.TempDir()
	store, err := mediaservice.NewLocalStore(dir)
	require.NoError(t, err)

	app := newBareApplication(&Config{UploadTimeout: uploadTimeout})
	app.mediaService = mediaservice.NewMediaService(store, 0, app.logger)
	app.uploadDir = dir

	return app
}

func multipartFile(t *testing.T, filename string, content []byte) ([]byte, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return body.Bytes(), mw.FormDataContentType()
}

func TestUploadHandlerSlowBody(t *testing.T) {
	audio := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 16<<10)...)
	body, contentType := multipartFile(t, "session.mp3", audio)

	tests := []struct {
		name          string
		uploadTimeout time.Duration
		// stall stops sending after the first chunk
		stall      bool
		wantStatus int
	}{
		{name: "slower than read timeout", uploadTimeout: 10 * time.Second, wantStatus: http.StatusCreated},
		{name: "upload window exceeded", uploadTimeout: 300 * time.Millisecond, stall: true, wantStatus: http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newUploadApplication(t, tt.uploadTimeout)

			ts := httptest.NewUnstartedServer(http.HandlerFunc(app.uploadHandler))
			ts.Config.ReadTimeout = 300 * time.Millisecond
			ts.Start()
			t.Cleanup(ts.Close)

			pr, pw := io.Pipe()
			stop := make(chan struct{})
			defer close(stop)

			go func() {
				const chunks = 8
				size := len(body)/chunks + 1
				for i := 0; i < len(body); i += size {
					if _, err := pw.Write(body[i:min(i+size, len(body))]); err != nil {
						return
					}
					if tt.stall {
						<-stop
						pw.CloseWithError(errors.New("client gave up"))
						return
					}
					time.Sleep(150 * time.Millisecond)
				}
				pw.Close()
			}()

			req, err := http.NewRequest(http.MethodPost, ts.URL, pr)
			require.NoError(t, err)
			req.Header.Set("Content-Type", contentType)

			res, err := ts.Client().Do(req)
			require.NoError(t, err)

			status, _, env := readResponse(t, res)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantStatus == http.StatusCreated {
				upload := object(t, env, "upload")
				assert.Equal(t, "audio", upload["kind"])
				assert.Equal(t, "audio/mpeg", upload["content_type"])
			} else {
				assert.Equal(t, "the upload took too long to arrive", env["error"])
			}
		})
	}
}

func TestUploadDirectoriesAreNotListed(t *testing.T) {
	app := newUploadApplication(t, time.Minute)

	require.NoError(t, os.MkdirAll(filepath.Join(app.uploadDir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(app.uploadDir, "images", "cover.png"), []byte("png bytes"), 0o644))

	ts := newTestServer(t, app.routes())

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/uploads/images/cover.png", wantStatus: http.StatusOK, wantBody: "png bytes"},
		{path: "/uploads/images/", wantStatus: http.StatusNotFound},
		{path: "/uploads/", wantStatus: http.StatusNotFound},
		{path: "/uploads/images/missing.png", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := ts.Client().Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer res.Body.Close()

			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.NotContains(t, string(body), "cover.png")
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}
