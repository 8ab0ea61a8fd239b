package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	app_errors "portfolio-ai/backend/internal/errors"
)

// This file contains shared DTOs for API responses and helper functions for
// sending consistent HTTP responses.

// StatusClientClosedRequest is the non-standard status used when the caller
// abandons a request before the relay finished it.
const StatusClientClosedRequest = 499

// ErrorResponse defines the standard JSON structure for error messages.
// Details carries the upstream error body when the failure came from upstream.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// StatusResponse defines a generic success response.
type StatusResponse struct {
	Status string `json:"status"`
}

// respondWithError is the centralized error handling function for the API layer.
// It maps business-layer errors to HTTP status codes and formats a standard
// JSON error response.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string
	var details any

	var upstreamErr *app_errors.UpstreamError
	switch {
	case errors.Is(err, app_errors.ErrCancelled):
		// Not a failure. The caller is usually gone, but try anyway.
		slog.Info("Client closed request", "error", err)
		respondWithJSON(w, StatusClientClosedRequest, ErrorResponse{Error: "Client closed request."})
		return
	case errors.As(err, &upstreamErr):
		statusCode = upstreamErr.Status
		message = "The upstream completion API returned an error."
		details = upstreamErr.Details
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		// The service layer already produces a user-facing message here.
		message = err.Error()
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = "Too many requests, slow down."
	case errors.Is(err, app_errors.ErrConfiguration):
		statusCode = http.StatusInternalServerError
		message = "The server is missing its upstream API credential."
	default:
		// Never leak implementation details to the client.
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	if statusCode >= http.StatusInternalServerError {
		slog.Error("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)
	} else {
		slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)
	}

	respondWithJSON(w, statusCode, ErrorResponse{Error: message, Details: details})
}

// respondWithJSON is a low-level helper for marshaling a payload to JSON
// and writing it to the http.ResponseWriter with a given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
