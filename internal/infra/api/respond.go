package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/infra/logging"

	"github.com/rs/zerolog"
)

type errorBody struct {
	Error           string `json:"error"`
	Message         string `json:"message,omitempty"`
	UpgradeRequired bool   `json:"upgradeRequired,omitempty"`
	LoginRequired   bool   `json:"loginRequired,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.ErrInvalidArgument
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

// statusFor maps a domain error to its HTTP status and client body.
func statusFor(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "Authentication required", LoginRequired: true}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: "Invalid credentials"}
	case errors.Is(err, domain.ErrEntitlementExhausted):
		return http.StatusForbidden, errorBody{
			Error:           "Premium required",
			Message:         "Upgrade to premium for unlimited access.",
			UpgradeRequired: true,
		}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "Too many requests", Message: err.Error(), Retryable: true}
	case errors.Is(err, domain.ErrTransientDependency):
		return http.StatusServiceUnavailable, errorBody{Error: "Service temporarily unavailable", Retryable: true}
	case errors.Is(err, domain.ErrPaymentsDisabled):
		return http.StatusServiceUnavailable, errorBody{Error: "Payments are not configured"}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusBadRequest, errorBody{Error: "Email already registered"}
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrMalformedEvent):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "Not found"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "Internal server error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if body.Retryable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, body)
}
