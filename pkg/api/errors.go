package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/warden/pkg/policy"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Status    uint32 `json:"driver_status,omitempty"`
	Retryable bool   `json:"retryable"`
}

// kindRequest marks malformed requests that never reached the engine.
const kindRequest = "invalid_request"

// StatusFor returns the HTTP status for an engine error kind.
func StatusFor(k policy.Kind) int {
	switch k {
	case policy.KindNotFound:
		return http.StatusNotFound
	case policy.KindNotAccessible:
		return http.StatusForbidden
	case policy.KindInvalidIntent, policy.KindInvalidPath:
		return http.StatusUnprocessableEntity
	case policy.KindKernelTransport:
		return http.StatusBadGateway
	case policy.KindKernelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse converts err into a status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var pe *policy.Error
	if errors.As(err, &pe) {
		return StatusFor(pe.Kind), ErrorResponse{Error: ErrorDetail{
			Message:   err.Error(),
			Kind:      pe.Kind.String(),
			Status:    pe.Status,
			Retryable: pe.Kind.Retryable(),
		}}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Message: "an internal error occurred",
		Kind:    policy.KindUnknown.String(),
	}}
}

// writeJSON encodes v before writing the status, so a value that fails to
// encode becomes a 500 instead of a success with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Default().Error("failed to encode JSON response",
			"component", "api",
			"status", status,
			"error", err,
		)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: ErrorDetail{
			Message: "an internal error occurred",
			Kind:    policy.KindUnknown.String(),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Message: message,
		Kind:    kindRequest,
	}})
}
