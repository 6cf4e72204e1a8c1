package main

import (
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// user service
	router.HandlerFunc(http.MethodPost, "/v1/users/register", app.registerUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/username-available", app.usernameAvailableHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/login", app.loginUserHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/google", app.googleSignInHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/password-reset", app.requestPasswordResetHandler)
	router.HandlerFunc(http.MethodPut, "/v1/users/password-reset", app.resetPasswordHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/logout", app.requireAuthUser(app.logoutUserHandler))
	router.HandlerFunc(http.MethodGet, "/v1/users/me", app.requireAuthUser(app.currentUserHandler))
	router.HandlerFunc(http.MethodPut, "/v1/users/me/password", app.requireAuthUser(app.updatePasswordHandler))

	// blog service
	router.HandlerFunc(http.MethodGet, "/v1/blogs", app.listPostsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs", app.requireAdmin(app.createPostHandler))
	// /v1/blogs/search and /v1/blogs/stream are dispatched by blogItemHandler
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id", app.blogItemHandler)
	router.HandlerFunc(http.MethodPut, "/v1/blogs/:id", app.requireAdmin(app.updatePostHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/blogs/:id", app.requireAdmin(app.deletePostHandler))
	router.HandlerFunc(http.MethodPost, "/v1/blogs/:id/like", app.requireAuthUser(app.likePostHandler))
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id/comments", app.listCommentsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs/:id/comments", app.requireAuthUser(app.addCommentHandler))

	// booking service
	router.HandlerFunc(http.MethodPost, "/v1/bookings", app.createBookingHandler)
	router.HandlerFunc(http.MethodGet, "/v1/bookings", app.requireAdmin(app.listBookingsHandler))

	// media service
	router.HandlerFunc(http.MethodPost, "/v1/uploads", app.requireAdmin(app.uploadHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/uploads", app.requireAdmin(app.deleteUploadHandler))
	if app.uploadDir != "" {
		router.ServeFiles("/uploads/*filepath", fileOnlyFS{http.Dir(app.uploadDir)})
	}

	return app.recoverPanic(app.logRequest(app.enableCORS(app.rateLimit(app.authenticate(router)))))
}

// fileOnlyFS serves files but reports directories as missing, so upload folders cannot be listed.
type fileOnlyFS struct {
	fs http.FileSystem
}

func (f fileOnlyFS) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}

	return file, nil
}
