package main

import (
	"errors"
	"net/http"

	"github.com/sirgibblets/achew-core/internal/pipelineerr"
)

// statusFor maps a pipelineerr sentinel to the HTTP status that best
// fits its error class.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipelineerr.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, pipelineerr.ErrTransient):
		return http.StatusBadGateway
	case errors.Is(err, pipelineerr.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, pipelineerr.ErrInvariant):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
