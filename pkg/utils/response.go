package utils

import (
	"encoding/json"
	"net/http"

	"imagevault/pkg/logger"
)

const (
	// Request Error Codes
	ErrRequestInvalid           = "request/invalid_parameters"
	ErrRequestBadRequest        = "request/bad_request"
	ErrRequestRateLimitExceeded = "request/rate_limit_exceeded"
	ErrRequestForbidden         = "request/forbidden"

	ErrRequestBodyTooLarge     = "request/body_too_large"
	ErrRequestUnSupportedMedia = "request/invalid_media"

	// Auth Error Codes
	ErrAuthRequired = "auth/authentication_required"
	ErrAuthInvalid  = "auth/invalid_credentials"

	// Server Error Codes
	ErrServerInternal = "server/internal_error"

	// Validation & Resource Error Codes
	ErrValidationInvalidFormat = "validation/invalid_format"
	ErrResourceNotFound        = "resource/not_found"

	// Upstream stores (object store, metadata store, secret store)
	ErrUpstreamFailed = "upstream/service_failed"
)

type APIError struct {
	Code    string `json:"code"`    // e.g., "request/invalid_parameters"
	Message string `json:"message"` // User-friendly message
	Status  int    `json:"status"`  // HTTP Status Code
}

// WriteError sends a JSON formatted error response
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	logger.LogDebug("%s: %s", code, message)
	WriteJSON(w, status, APIError{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
