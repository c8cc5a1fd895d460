package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ayusman/natya/internal/engine"
)

// LabelHandler handles HTTP requests for activity labels.
type LabelHandler struct {
	engine *engine.Engine
}

// NewLabelHandler creates a new LabelHandler for e.
func NewLabelHandler(e *engine.Engine) *LabelHandler {
	return &LabelHandler{engine: e}
}

type createLabelRequest struct {
	Name string `json:"name"`
}

type listLabelsResponse struct {
	Labels []engine.LabelStatus `json:"labels"`
}

// ServeHTTP routes /api/labels, /api/labels/{name} and
// /api/labels/{name}/select.
func (h *LabelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/labels")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	name, action, _ := strings.Cut(path, "/")
	name, err := url.PathUnescape(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid label name")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		h.delete(w, r, name)
	case action == "select" && r.Method == http.MethodPut:
		h.selectLabel(w, r, name)
	case action == "" || action == "select":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// list handles GET /api/labels.
func (h *LabelHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listLabelsResponse{Labels: h.engine.Status().Labels})
}

// create handles POST /api/labels.
func (h *LabelHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createLabelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.engine.AddLabel(req.Name); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, engine.LabelStatus{Name: req.Name})
}

// delete handles DELETE /api/labels/{name}. Removing the label being
// recorded succeeds but reports the aborted session.
func (h *LabelHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	err := h.engine.RemoveLabel(name)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, engine.ErrRecordingAborted):
		writeJSON(w, http.StatusOK, errorResponse{Error: err.Error(), Condition: engine.Condition(err)})
	default:
		writeEngineError(w, err)
	}
}

// selectLabel handles PUT /api/labels/{name}/select.
func (h *LabelHandler) selectLabel(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.engine.SelectLabel(name); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}
