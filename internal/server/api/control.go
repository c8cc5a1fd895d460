package api

import (
	"net/http"

	"github.com/ayusman/natya/internal/engine"
)

// ControlHandler exposes the engine state machine: status, mode, recording
// and refit.
type ControlHandler struct {
	engine *engine.Engine
}

// NewControlHandler creates a new ControlHandler for e.
func NewControlHandler(e *engine.Engine) *ControlHandler {
	return &ControlHandler{engine: e}
}

type modeRequest struct {
	Mode *engine.Mode `json:"mode"`
}

type recordingRequest struct {
	Recording *bool `json:"recording"`
}

// Status handles GET /api/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Mode handles PUT /api/mode.
func (h *ControlHandler) Mode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req modeRequest
	if err := decode(r, &req); err != nil || req.Mode == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.engine.SetMode(*req.Mode); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Recording handles PUT /api/recording.
func (h *ControlHandler) Recording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req recordingRequest
	if err := decode(r, &req); err != nil || req.Recording == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.engine.SetRecording(*req.Recording); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Refit handles POST /api/refit. It waits for the fit to finish.
func (h *ControlHandler) Refit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.engine.Refit(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}
