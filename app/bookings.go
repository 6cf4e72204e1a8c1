package main

import (
	"errors"
	"net/http"

	"github.com/sushihentaime/emerald/internal/bookingservice"
	"github.com/sushihentaime/emerald/internal/common"
)

type createBookingRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (app *application) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var input createBookingRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	booking, err := app.bookingService.CreateBooking(r.Context(), bookingservice.BookingInput{
		Name:    input.Name,
		Email:   input.Email,
		Message: input.Message,
	})
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"submitted": true, "booking": booking}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
}

func (app *application) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := app.readLimitOffsetParams(r)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	bookings, err := app.bookingService.ListBookings(r.Context(), limit, offset)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"bookings": bookings}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
}
