package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/store"
)

// SessionHandler serves the session archive.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID        string `json:"id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type recordingResponse struct {
	ID         int64           `json:"id"`
	Label      string          `json:"label"`
	Vector     features.Vector `json:"vector"`
	RecordedAt string          `json:"recorded_at"`
}

type outputResponse struct {
	Kind      string  `json:"kind"`
	Label     string  `json:"label,omitempty"`
	Condition string  `json:"condition,omitempty"`
	Error     string  `json:"error,omitempty"`
	TookMS    float64 `json:"took_ms,omitempty"`
	At        string  `json:"at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type listRecordingsResponse struct {
	SessionID  string              `json:"session_id"`
	Counts     map[string]int      `json:"counts"`
	Recordings []recordingResponse `json:"recordings"`
}

type listOutputsResponse struct {
	SessionID string           `json:"session_id"`
	Outputs   []outputResponse `json:"outputs"`
}

// ServeHTTP routes /api/sessions, /api/sessions/{id}/recordings and
// /api/sessions/{id}/outputs.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		h.list(w, r)
		return
	}

	id, resource, _ := strings.Cut(path, "/")
	switch resource {
	case "recordings":
		h.recordings(w, r, id)
	case "outputs":
		h.outputs(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// recordings handles GET /api/sessions/{id}/recordings?label=.
func (h *SessionHandler) recordings(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		writeEngineError(w, err)
		return
	}

	recs, err := h.store.Recordings().ListBySession(id, r.URL.Query().Get("label"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}
	counts, err := h.store.Recordings().CountByLabel(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count recordings")
		return
	}

	resp := listRecordingsResponse{
		SessionID:  id,
		Counts:     counts,
		Recordings: make([]recordingResponse, 0, len(recs)),
	}
	for _, rec := range recs {
		resp.Recordings = append(resp.Recordings, recordingResponse{
			ID:         rec.ID,
			Label:      rec.Label,
			Vector:     rec.Vector,
			RecordedAt: rec.RecordedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// outputs handles GET /api/sessions/{id}/outputs?limit=.
func (h *SessionHandler) outputs(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		writeEngineError(w, err)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	outs, err := h.store.Outputs().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outputs")
		return
	}

	resp := listOutputsResponse{SessionID: id, Outputs: make([]outputResponse, 0, len(outs))}
	for _, o := range outs {
		resp.Outputs = append(resp.Outputs, outputResponse{
			Kind:      string(o.Kind),
			Label:     o.Label,
			Condition: o.Condition,
			Error:     o.Error,
			TookMS:    o.TookMS,
			At:        o.At.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
