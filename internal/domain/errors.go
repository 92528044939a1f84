package domain

import (
	"errors"
	"net/http"
)

var (
	ErrMalformedCredentials = errors.New("malformed credentials")
	ErrNotAuthenticated     = errors.New("credentials not set")
	ErrDestinationNotFound  = errors.New("destination not found")
	ErrLinkNotFound         = errors.New("negotiation link not found")
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrHashNotFound         = errors.New("negotiation hash not found")
	ErrRemoteService        = errors.New("remote service error")
	ErrTransport            = errors.New("transport error")
	ErrStoreFailure         = errors.New("store failure")
)

// Code returns the stable machine-readable code for a classified error.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedCredentials):
		return "malformed_credentials"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrDestinationNotFound):
		return "destination_not_found"
	case errors.Is(err, ErrLinkNotFound):
		return "link_not_found"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrHashNotFound):
		return "hash_not_found"
	case errors.Is(err, ErrRemoteService):
		return "remote_service_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps a classified error to the status code returned to webhook callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDestinationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrLinkNotFound):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidIdentity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrMalformedCredentials), errors.Is(err, ErrHashNotFound):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRemoteService), errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
