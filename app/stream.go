package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const streamHeartbeat = 25 * time.Second

// streamPostsHandler sends blog events as server-sent events until the client goes away.
func (app *application) streamPostsHandler(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// the server write timeout would otherwise end the stream
	err := rc.SetWriteDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		app.serverErrorResponse(w, r, err)
		return
	}

	events, unsubscribe := app.hub.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		app.logError(r, err)
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			_, err = fmt.Fprintf(w, "event: blog\ndata: %s\n\n", msg)
		case <-ticker.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		}

		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			return
		}
	}
}
