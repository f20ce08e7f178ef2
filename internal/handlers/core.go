package handlers

import (
	"errors"
	"net/http"

	"imagevault/internal/auth"
	"imagevault/internal/catalog"
	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

// writeServiceError maps a catalog error kind to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, utils.ErrResourceNotFound, err.Error())
	case errors.Is(err, catalog.ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, utils.ErrRequestForbidden, err.Error())
	case errors.Is(err, catalog.ErrUnauthorized):
		code := utils.ErrAuthInvalid
		if errors.Is(err, auth.ErrMissingToken) {
			code = utils.ErrAuthRequired
		}
		utils.WriteError(w, http.StatusUnauthorized, code, err.Error())
	case errors.Is(err, catalog.ErrDependency):
		logger.LogError("Upstream failure: %v", err)
		utils.WriteError(w, http.StatusBadGateway, utils.ErrUpstreamFailed, err.Error())
	default:
		logger.LogError("Unhandled error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Internal server error")
	}
}

// unauthorized wraps an authentication failure in the catalog kind.
func unauthorized(err error) error {
	msg := "Unable to authenticate request"
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		msg = "Authentication required"
	case errors.Is(err, auth.ErrInvalidToken):
		msg = "Invalid or expired token"
	}
	return catalog.NewError(catalog.ErrUnauthorized, msg, err)
}

// authenticate resolves the caller or writes a 401 and returns false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	who, err := h.auth.AuthenticateRequest(r)
	if err != nil {
		writeServiceError(w, unauthorized(err))
		return auth.Identity{}, false
	}
	return who, true
}
