// Package api provides HTTP API handlers for the natya control surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/natya/internal/engine"
	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/store"
)

type errorResponse struct {
	Error     string `json:"error"`
	Condition string `json:"condition,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps an engine or store error to a status code.
func writeEngineError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Error:     err.Error(),
		Condition: engine.Condition(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gesture.ErrDuplicateLabel):
		return http.StatusConflict
	case errors.Is(err, gesture.ErrUnknownLabel), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gesture.ErrNotEnoughData), errors.Is(err, gesture.ErrModelNotReady):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrRefitBusy), errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, gesture.ErrInvalidLabel), errors.Is(err, engine.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
