// Package api exposes the local HTTP control surface used by front ends in run mode.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"sync"

	"example.com/liftcoach/internal/auth"
	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/outbox"
	"example.com/liftcoach/internal/progress"
)

// Coordinator is the sync side of the outbox.
type Coordinator interface {
	SaveSet(ctx context.Context, session *domain.Session, input domain.SetInput) (outbox.SaveOutcome, error)
	Flush(ctx context.Context) (outbox.FlushResult, error)
}

// Pending lists queued entries.
type Pending interface {
	Load(ctx context.Context) []outbox.Entry
}

// Prefiller suggests values for the next set.
type Prefiller interface {
	Prefill(ctx context.Context, ex domain.Exercise) progress.Prefill
}

// SessionStore persists the current session.
type SessionStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, sess *domain.Session) error
}

// Connectivity reports the current online state.
type Connectivity interface {
	Online() bool
}

// Handler coordinates HTTP requests with the outbox and progress lookups. Every route
// except /healthz expects claims placed on the request context by auth.Middleware.
type Handler struct {
	coordinator  Coordinator
	pending      Pending
	prefill      Prefiller
	sessions     SessionStore
	connectivity Connectivity

	// sessionMu serialises set saves so set numbers are handed out once.
	sessionMu sync.Mutex
}

// NewHandler builds a Handler.
func NewHandler(coordinator Coordinator, pending Pending, prefill Prefiller, sessions SessionStore, connectivity Connectivity) *Handler {
	return &Handler{
		coordinator:  coordinator,
		pending:      pending,
		prefill:      prefill,
		sessions:     sessions,
		connectivity: connectivity,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sets", h.sets)
	mux.HandleFunc("/v1/prefill", h.prefillForExercise)
	mux.HandleFunc("/v1/queue", h.queue)
	mux.HandleFunc("/v1/sync", h.sync)
	mux.HandleFunc("/v1/session", h.session)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for supervisors.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r, auth.ScopeSetsWrite) {
		return
	}
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "content type application/json required")
		return
	}

	var req SaveSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	sess, err := h.sessions.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if req.Exercise != nil {
		sess.Select(*req.Exercise)
	}

	outcome, err := h.coordinator.SaveSet(r.Context(), sess, req.input())
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := SaveSetResponse{
		SetID:     outcome.Record.SetID,
		SetNo:     outcome.Record.SetNo,
		NextSetNo: sess.SetNo,
		Status:    "delivered",
		Reason:    outcome.Reason,
		Pending:   len(h.pending.Load(r.Context())),
	}
	status := http.StatusCreated
	if outcome.Queued {
		resp.Status = "queued"
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (h *Handler) prefillForExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r, auth.ScopeSetsRead, auth.ScopeSetsWrite) {
		return
	}

	q := r.URL.Query()
	ex := domain.Exercise{
		BodypartUI:   q.Get("bodypart_ui"),
		Pattern:      q.Get("pattern"),
		RangeType:    q.Get("range_type"),
		EquipmentCat: q.Get("equipment_cat"),
	}
	if strings.TrimSpace(ex.BodypartUI) == "" || strings.TrimSpace(ex.Pattern) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "bodypart_ui and pattern are required")
		return
	}

	writeJSON(w, http.StatusOK, PrefillResponse{
		ProgressKey: ex.ProgressKey(),
		Prefill:     h.prefill.Prefill(r.Context(), ex),
	})
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r, auth.ScopeSetsRead, auth.ScopeSetsWrite) {
		return
	}

	entries := h.pending.Load(r.Context())
	resp := QueueResponse{
		Pending: len(entries),
		Online:  h.connectivity.Online(),
		Entries: make([]QueueEntryView, 0, len(entries)),
	}
	for _, entry := range entries {
		view := QueueEntryView{Action: entry.Name}
		if record, ok := entry.SetRecord(); ok {
			view.SetID = record.SetID
			view.ExerciseName = record.ExerciseName
			view.SetNo = record.SetNo
		}
		resp.Entries = append(resp.Entries, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r, auth.ScopeSetsWrite) {
		return
	}

	result, err := h.coordinator.Flush(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		FlushResult: result,
		Pending:     len(h.pending.Load(r.Context())),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r, auth.ScopeSetsRead, auth.ScopeSetsWrite) {
		return
	}

	h.sessionMu.Lock()
	sess, err := h.sessions.Load(r.Context())
	h.sessionMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SaveSetRequest is the payload for POST /v1/sets. Exercise switches the session to a
// new exercise before saving; when omitted the current selection is used.
type SaveSetRequest struct {
	Exercise *domain.Exercise `json:"exercise,omitempty"`
	Weight   float64          `json:"weight"`
	Reps     int              `json:"reps"`
	RIR      float64          `json:"rir"`
	Mode     string           `json:"mode,omitempty"`
	Notes    string           `json:"notes,omitempty"`
}

func (r SaveSetRequest) input() domain.SetInput {
	return domain.SetInput{
		Weight: r.Weight,
		Reps:   r.Reps,
		RIR:    r.RIR,
		Mode:   r.Mode,
		Notes:  r.Notes,
	}
}

// SaveSetResponse describes how a set was handled.
type SaveSetResponse struct {
	SetID     string `json:"set_id"`
	SetNo     int    `json:"set_no"`
	NextSetNo int    `json:"next_set_no"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Pending   int    `json:"pending"`
}

// PrefillResponse carries the suggestion for one progress key.
type PrefillResponse struct {
	ProgressKey string           `json:"progress_key"`
	Prefill     progress.Prefill `json:"prefill"`
}

// QueueEntryView summarises one pending entry.
type QueueEntryView struct {
	Action       string `json:"action"`
	SetID        string `json:"set_id,omitempty"`
	ExerciseName string `json:"exercise_name,omitempty"`
	SetNo        int    `json:"set_no,omitempty"`
}

// QueueResponse lists the offline queue.
type QueueResponse struct {
	Pending int              `json:"pending"`
	Online  bool             `json:"online"`
	Entries []QueueEntryView `json:"entries"`
}

// SyncResponse reports a manual flush.
type SyncResponse struct {
	outbox.FlushResult
	Pending int `json:"pending"`
}

// authorize writes 401 or 403 and reports false unless the caller holds one of scopes.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return false
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
