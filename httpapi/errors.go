package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/portalauth"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeEngineError maps an engine error to exactly one status and code.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusServiceUnavailable {
		s.logf("httpapi: %v", err)
	}
	writeError(w, status, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, portalauth.ErrUnavailable), errors.Is(err, portalauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, portalauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, portalauth.ErrUnauthorized),
		errors.Is(err, portalauth.ErrRefreshInvalid),
		errors.Is(err, portalauth.ErrRefreshReuse):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, portalauth.ErrAccountDisabled):
		return http.StatusForbidden, "account_disabled"
	case errors.Is(err, portalauth.ErrPermissionDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, portalauth.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, portalauth.ErrAccountExists):
		return http.StatusConflict, "account_exists"
	case errors.Is(err, portalauth.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, portalauth.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusServiceUnavailable, "unavailable"
	}
}
