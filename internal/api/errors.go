package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/miplug-bridge/internal/outlet"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnauthorized         = "unauthorised"
	ErrCodeInternal             = "internal_error"
	ErrCodeConfigurationInvalid = "configuration_invalid"
	ErrCodeDeviceUnreachable    = "device_unreachable"
	ErrCodeDeviceTimeout        = "device_timeout"
	ErrCodeNotConfigured        = "not_configured"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAccessoryError maps an accessory read or write failure to a response.
func writeAccessoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outlet.ErrConfigurationInvalid):
		writeError(w, http.StatusServiceUnavailable, ErrCodeConfigurationInvalid, "accessory configuration invalid")
	case errors.Is(err, outlet.ErrInvalidValue):
		writeBadRequest(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeDeviceTimeout, "device did not respond in time")
	case errors.Is(err, outlet.ErrDeviceCommunication):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceUnreachable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
