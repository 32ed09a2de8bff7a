package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nickweedon/leasedkeyq/internal/keyqueue"
	"github.com/nickweedon/leasedkeyq/internal/runtime"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeCreated writes a 201 Created response.
func writeCreated(w http.ResponseWriter) {
	w.WriteHeader(http.StatusCreated)
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runtime.ErrInvalidQueueName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, runtime.ErrTooManyQueues):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, runtime.ErrRuntimeClosed), errors.Is(err, keyqueue.ErrQueueClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, keyqueue.ErrKeyInFlight), errors.Is(err, keyqueue.ErrLeaseAcknowledged):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, keyqueue.ErrInvalidLease):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes the JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requirePost rejects non-POST methods.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// requireGet rejects non-GET methods.
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}
