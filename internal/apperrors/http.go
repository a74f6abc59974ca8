package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotADescriptorFile),
		errors.Is(err, ErrBlockedByHost),
		errors.Is(err, ErrRemoteNotFound),
		errors.Is(err, ErrRemoteTimeout),
		errors.Is(err, ErrRemoteHTTP),
		errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrEngine):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
