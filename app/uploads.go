package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sushihentaime/emerald/internal/mediaservice"
)

const (
	// multipart overhead allowed on top of the file size limit
	uploadFormSlack = 1 << 20
	// time left to store the file and respond once the body has arrived
	uploadWriteSlack = 30 * time.Second
)

func (app *application) uploadHandler(w http.ResponseWriter, r *http.Request) {
	// large files need longer than the server timeouts allow other requests
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(app.config.UploadTimeout)
	err := rc.SetReadDeadline(deadline)
	if err == nil {
		err = rc.SetWriteDeadline(deadline.Add(uploadWriteSlack))
	}
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		app.serverErrorResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.mediaService.MaxBytes()+uploadFormSlack)

	err = r.ParseMultipartForm(32 << 20)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesError):
			app.payloadTooLargeResponse(w, r)
		case isTimeout(err):
			app.requestTimeoutResponse(w, r)
		default:
			app.badRequestErrorResponse(w, r, mediaservice.ErrNoFile)
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if err != nil {
		app.badRequestErrorResponse(w, r, mediaservice.ErrNoFile)
		return
	}

	result, err := app.mediaService.Upload(r.Context(), header)
	if err != nil {
		switch {
		case errors.Is(err, mediaservice.ErrNoFile):
			app.badRequestErrorResponse(w, r, err)
		case errors.Is(err, mediaservice.ErrFileTooLarge):
			app.payloadTooLargeResponse(w, r)
		case errors.Is(err, mediaservice.ErrUnsupportedType):
			app.failedValidationErrorResponse(w, r, map[string]string{"file": "must be a JPEG, PNG, GIF or WebP image, or an MP3, WAV, OGG or M4A audio file"})
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"upload": result}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
}

func (app *application) deleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	err := app.mediaService.Delete(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		switch {
		case errors.Is(err, mediaservice.ErrInvalidKey):
			app.failedValidationErrorResponse(w, r, map[string]string{"key": "must be a key returned by an upload"})
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "upload deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
