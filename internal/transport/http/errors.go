package http

import (
	"errors"
	"net/http"

	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
)

type errorPayload struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// errorBody renders an error for clients. Internal errors keep their details in the logs.
func errorBody(err error) errorPayload {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		return errorPayload{Kind: kind, Message: "internal error"}
	}
	return errorPayload{Kind: kind, Message: err.Error()}
}

func statusFor(err error) int {
	if errors.Is(err, auth.ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
