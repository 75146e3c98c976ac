// Package apperr defines the storefront's error taxonomy and maps it to
// classification kinds, HTTP statuses and user-facing messages.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrItemUnavailable   = errors.New("item unavailable")
	ErrSubmitInFlight    = errors.New("order submission already in progress")
	ErrPaymentInFlight   = errors.New("payment already in progress")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoPayment         = errors.New("no payment for this order")
	ErrItemNotFound      = errors.New("item not found in menu")
)

const GenericPaymentFailure = "Payment failed. Please try again."

// ValidationError is a local input problem. It blocks the transition and is
// never sent to the backend.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// FetchError is any network failure or non-2xx response from a backend API.
// Message holds the server-supplied message when the error body carried one.
type FetchError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ServerMessage returns the server-supplied message carried by err, if any.
func ServerMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return ""
}

func Kind(err error) string {
	var ve *ValidationError
	var fe *FetchError

	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrItemUnavailable):
		return "item_unavailable"

	case errors.As(err, &ve):
		return "validation"

	case errors.Is(err, ErrSubmitInFlight), errors.Is(err, ErrPaymentInFlight):
		return "in_flight"

	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"

	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNoPayment), errors.Is(err, ErrItemNotFound):
		return "not_found"

	case errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound:
		return "not_found"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.As(err, &fe):
		return "fetch"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "item_unavailable", "in_flight", "invalid_transition":
		return http.StatusConflict
	case "validation":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusRequestTimeout
	case "fetch":
		// The backend's own client errors reach the browser unchanged.
		var fe *FetchError
		if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 {
			return fe.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is what the browser shows. Server messages pass through verbatim.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case ServerMessage(err) != "":
		return ServerMessage(err)
	case Kind(err) == "fetch":
		return "Could not reach the server. Please try again."
	case Kind(err) == "internal":
		return "Something went wrong."
	default:
		return err.Error()
	}
}
